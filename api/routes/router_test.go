package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"municipal/internal/shared/config"
	"municipal/internal/shared/database"
	"municipal/internal/shared/middleware"
	"municipal/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	engine *gin.Engine
	cfg    *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		GinMode:    gin.TestMode,
		APIPrefix:  "/api",
		APIVersion: "v1",
		Database:   config.DatabaseConfig{Driver: database.DriverSQLite, DSN: ":memory:"},
		JWT:        config.JWTConfig{Secret: "routes-secret"},
		Booking:    config.BookingConfig{ReleaseCancelled: true, CodeAttempts: 5},
	}

	db, err := database.InitDB(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	engine := gin.New()
	NewRouter(cfg, db, nil).SetupRoutes(engine)
	return &harness{engine: engine, cfg: cfg}
}

func (h *harness) do(t *testing.T, method, path string, as *users.Principal, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, err := middleware.IssueAccessToken(h.cfg.JWT.Secret, *as, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

var (
	editor = &users.Principal{Username: "ines", Role: users.RoleEditor}
	member = &users.Principal{Username: "joao", Role: users.RoleConsultant}
)

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = h.do(t, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")

	w = h.do(t, http.MethodGet, "/status", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis_cache":false`)
}

func TestBookingFlowAcrossModules(t *testing.T) {
	h := newHarness(t)
	date := time.Now().AddDate(0, 0, 3).Format("2006-01-02")

	w := h.do(t, http.MethodPost, "/api/v1/events", editor, map[string]interface{}{
		"title":       "Library Reading Night",
		"date":        date,
		"time":        "18:00",
		"status":      "open_call",
		"total_quota": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	eventID := data(t, w)["id"].(string)

	w = h.do(t, http.MethodPost, "/api/v1/bookings", member, map[string]interface{}{
		"event_id":        eventID,
		"requested_units": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := data(t, w)
	assert.Equal(t, date, booking["date"])
	assert.Equal(t, "18:00", booking["time"])
	assert.Len(t, booking["code"], 12)

	w = h.do(t, http.MethodPost, "/api/v1/bookings", member, map[string]interface{}{
		"event_id":        eventID,
		"requested_units": 2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// rescheduling the event carries over to its bookings
	newDate := time.Now().AddDate(0, 0, 4).Format("2006-01-02")
	w = h.do(t, http.MethodPut, "/api/v1/events/"+eventID, editor, map[string]interface{}{"date": newDate})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, "/api/v1/bookings/"+booking["id"].(string), member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, newDate, data(t, w)["date"])

	w = h.do(t, http.MethodGet, "/api/v1/notifications/history", editor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, data(t, w)["total_count"])

	w = h.do(t, http.MethodGet, "/api/v1/dashboard/overview", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	agenda := data(t, w)["agenda"].([]interface{})
	require.Len(t, agenda, 1)

	w = h.do(t, http.MethodDelete, "/api/v1/events/"+eventID, editor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, "/api/v1/bookings/"+booking["id"].(string), editor, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
