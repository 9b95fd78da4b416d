package analytics

import "time"

// Session is an active-session row in the relational store. Sessions group
// events attributable to one visitor's continuous activity on a site; they
// are created and mutated exclusively by the session stitcher.
type Session struct {
	ID           string
	SiteID       string
	UserID       *string
	IPAddress    *string
	UserAgent    *string
	IsActive     bool
	LastActivity time.Time
	CreatedAt    time.Time
}

// SessionSummary is the per-session aggregate written to analytics_session
// when a session ends.
type SessionSummary struct {
	SessionID       string  `ch:"session_id"`
	SiteID          string  `ch:"site_id"`
	UserID          *string `ch:"user_id"`
	StartedAt       string  `ch:"started_at"`
	EndedAt         string  `ch:"ended_at"`
	DurationSeconds uint32  `ch:"duration_seconds"`
	IP              *string `ch:"ip"`
	UserAgent       *string `ch:"user_agent"`
}

// Site is the tenant-owned tracked property events are attributed to. It is
// read-only from the ingestion pipeline's perspective.
type Site struct {
	ID             string
	Name           string
	Domain         string
	OrganizationID string
}
