package bookings

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateBookingRequest_ZonePresence(t *testing.T) {
	zoneID := uuid.New()

	tests := []struct {
		name      string
		body      string
		wantZone  *uuid.UUID
		wantClear bool
	}{
		{"absent", `{"notes":"x"}`, nil, false},
		{"null", `{"zone_id":null}`, nil, true},
		{"empty", `{"zone_id":""}`, nil, true},
		{"set", `{"zone_id":"` + zoneID.String() + `"}`, &zoneID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateBookingRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			p := req.Privileged(staff)
			assert.Equal(t, tt.wantZone, p.ZoneID)
			assert.Equal(t, tt.wantClear, p.ClearZone)
		})
	}
}

func TestUpdateBookingRequest_InvalidZone(t *testing.T) {
	var req UpdateBookingRequest
	assert.Error(t, json.Unmarshal([]byte(`{"zone_id":"nope"}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"zone_id":7}`), &req))
}
