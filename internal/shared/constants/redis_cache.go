package constants

import "time"

// Redis cache keys follow municipal:{module}:{view}:{identifier}

const CACHE_PREFIX = "municipal"

// Events
const (
	CACHE_KEY_EVENT_DETAIL = CACHE_PREFIX + ":events:detail:uuid:" // + event-id

	TTL_EVENT_DETAIL = 10 * time.Minute
)

// Dashboard
const (
	CACHE_KEY_DASHBOARD_OVERVIEW = CACHE_PREFIX + ":dashboard:overview:" // + audience

	TTL_DASHBOARD_OVERVIEW = time.Minute
)

// Invalidation patterns
const (
	PATTERN_INVALIDATE_EVENT_ALL = CACHE_PREFIX + ":events:*"
	PATTERN_INVALIDATE_DASHBOARD = CACHE_PREFIX + ":dashboard:*"
)

func BuildEventDetailKey(eventID string) string {
	return CACHE_KEY_EVENT_DETAIL + eventID
}

// BuildDashboardKey keys the overview by who is looking: "public", "staff"
// or "user:<username>".
func BuildDashboardKey(audience string) string {
	return CACHE_KEY_DASHBOARD_OVERVIEW + audience
}
