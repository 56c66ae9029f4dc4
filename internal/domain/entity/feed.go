package entity

import "time"

// Feed represents a subscribed RSS/Atom source.
type Feed struct {
	ID                  int64
	URL                 string
	Title               string
	SiteURL             string
	AuthorName          string
	AuthorEmail         string
	ETag                string
	LastModified        string
	FetchError          string
	FetchErrorCount      int
	ConsecutiveFailures int
	LastFetchAt         *time.Time
	LastSuccessAt       *time.Time
	LastEntryAt         *time.Time
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HealthState classifies a Feed's consecutive-failure count into the
// Healthy/Degraded/Unhealthy/Inactive state machine of the fetcher.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
	HealthInactive  HealthState = "inactive"
)

// State reports the feed's current health bucket given the configured
// unhealthy and deactivate thresholds (N and M in spec terms).
func (f *Feed) State(unhealthyThreshold, deactivateThreshold int) HealthState {
	switch {
	case !f.IsActive:
		return HealthInactive
	case f.ConsecutiveFailures == 0:
		return HealthHealthy
	case f.ConsecutiveFailures < unhealthyThreshold:
		return HealthDegraded
	case f.ConsecutiveFailures < deactivateThreshold:
		return HealthUnhealthy
	default:
		return HealthInactive
	}
}
