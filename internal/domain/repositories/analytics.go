// Package repositories defines the repository interfaces for the ingestion
// pipeline. These abstract the data persistence details, keeping the
// application services decoupled from the database drivers behind them.
package repositories

import (
	"time"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
)

// SessionData carries the optional identity attributes of an inbound event.
type SessionData struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// SiteRepository resolves inbound site ids against the tenant store. It is
// on the hot ingestion path and must be safe to call on every request.
type SiteRepository interface {
	// GetSiteConfig returns the site for the given id, or nil when unknown.
	GetSiteConfig(siteID string) (*analytics.Site, error)
}

// SessionRepository is the CRUD surface backing the session stitcher.
type SessionRepository interface {
	// GetActiveSession finds the active session for (siteID, userID).
	// Returns nil without error when no active session exists.
	GetActiveSession(siteID, userID string) (*analytics.Session, error)

	// CreateSession inserts a new active session with a server-generated id.
	// Creation is atomic per (siteID, userID): two concurrent creates for the
	// same identified visitor converge on a single row.
	CreateSession(siteID string, data SessionData) (*analytics.Session, error)

	// TouchSession bumps lastActivity and, when non-empty, refreshes the
	// stored user agent.
	TouchSession(sessionID, userAgent string) error

	// EndSession marks a session inactive. Ending an already-ended session
	// is a no-op.
	EndSession(sessionID string) error

	// ReapIdleSessions ends every active session whose last activity is
	// before the cutoff and returns the sessions that were ended.
	ReapIdleSessions(cutoff time.Time) ([]*analytics.Session, error)
}
