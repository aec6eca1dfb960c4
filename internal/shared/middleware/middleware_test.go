package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"municipal/internal/shared/config"
	"municipal/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
}

func newRouter(cfg *config.Config, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw...)
	router.GET("/whoami", func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok, "username": p.Username, "role": p.Role})
	})
	return router
}

func get(router http.Handler, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_ValidToken(t *testing.T) {
	cfg := testConfig()
	token, err := IssueAccessToken(cfg.JWT.Secret, users.Principal{Username: "ana", Role: users.RoleEditor}, time.Hour)
	require.NoError(t, err)

	w := get(newRouter(cfg, JWTAuth(cfg)), token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"ana"`)
	assert.Contains(t, w.Body.String(), `"role":"editor"`)
}

func TestJWTAuth_Rejections(t *testing.T) {
	cfg := testConfig()
	wrongSecret, _ := IssueAccessToken("other-secret", users.Principal{Username: "ana", Role: users.RoleAdmin}, time.Hour)
	expired, _ := IssueAccessToken(cfg.JWT.Secret, users.Principal{Username: "ana", Role: users.RoleAdmin}, -time.Minute)
	refresh, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": "ana",
		"role":     "admin",
		"type":     "refresh",
	}).SignedString([]byte(cfg.JWT.Secret))
	anonymous, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"type": "access",
	}).SignedString([]byte(cfg.JWT.Secret))

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"wrong secret", wrongSecret},
		{"expired", expired},
		{"refresh token", refresh},
		{"no username", anonymous},
		{"garbage", "not-a-jwt"},
	}

	router := newRouter(cfg, JWTAuth(cfg))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestJWTAuth_MalformedHeader(t *testing.T) {
	cfg := testConfig()
	router := newRouter(cfg, JWTAuth(cfg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Bearer")
}

func TestOptionalAuth(t *testing.T) {
	cfg := testConfig()
	router := newRouter(cfg, OptionalAuth(cfg))

	w := get(router, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)

	w = get(router, "not-a-jwt")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)

	token, _ := IssueAccessToken(cfg.JWT.Secret, users.Principal{Username: "eva", Role: users.RoleConsultant}, time.Hour)
	w = get(router, token)
	assert.Contains(t, w.Body.String(), `"authenticated":true`)
}

func TestRequireManager(t *testing.T) {
	cfg := testConfig()
	router := newRouter(cfg, JWTAuth(cfg), RequireManager())

	consultant, _ := IssueAccessToken(cfg.JWT.Secret, users.Principal{Username: "eva", Role: users.RoleConsultant}, time.Hour)
	admin, _ := IssueAccessToken(cfg.JWT.Secret, users.Principal{Username: "root", Role: users.RoleAdmin}, time.Hour)

	assert.Equal(t, http.StatusForbidden, get(router, consultant).Code)
	assert.Equal(t, http.StatusOK, get(router, admin).Code)
}

func TestRequestID(t *testing.T) {
	router := newRouter(testConfig(), RequestID())

	w := get(router, "")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}
