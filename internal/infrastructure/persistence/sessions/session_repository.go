// Package sessions provides the concrete SQL-based implementation of the
// active-session store backing the session stitcher.
//
// Session creation for identified visitors is an atomic get-or-create: a
// partial unique index on (site_id, user_id) over active rows makes the
// insert race-safe, and the loser of a concurrent create re-reads the winner.
package sessions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/domain/repositories"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/database"
	"github.com/openpulse/openpulse-go/internal/infrastructure/security"
	"github.com/openpulse/openpulse-go/pkg/config"
)

const timeFormat = "2006-01-02 15:04:05" // SQLite format

// SQLSessionRepository handles active-session persistence.
type SQLSessionRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLSessionRepository creates a new instance of the repository.
func NewSQLSessionRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLSessionRepository {
	return &SQLSessionRepository{
		db:     db,
		logger: logger,
	}
}

// GetActiveSession finds the active session for (siteID, userID).
func (r *SQLSessionRepository) GetActiveSession(siteID, userID string) (*analytics.Session, error) {
	const query = `
		SELECT id, site_id, user_id, ip_address, user_agent, is_active, last_activity, created_at
		FROM active_sessions
		WHERE site_id = ? AND user_id = ? AND is_active = 1
		LIMIT 1`

	start := time.Now()

	session, err := r.scanSession(r.db.QueryRow(query, siteID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Database().Error("Active session lookup failed",
			"error", err.Error(), "siteId", siteID, "userId", userID)
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, siteID)
	}
	return session, nil
}

// CreateSession inserts a new active session with a server-generated id.
func (r *SQLSessionRepository) CreateSession(siteID string, data repositories.SessionData) (*analytics.Session, error) {
	sessionID := security.GenerateSessionID()
	now := time.Now().UTC()

	const query = `
		INSERT INTO active_sessions (id, site_id, user_id, ip_address, user_agent, is_active, last_activity, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (site_id, user_id) WHERE user_id IS NOT NULL AND is_active = 1 DO NOTHING`

	start := time.Now()
	r.logger.Database().Debug("Executing session insert",
		"sessionId", sessionID, "siteId", siteID, "hasUserId", data.UserID != "")

	result, err := r.db.Exec(
		query,
		sessionID,
		siteID,
		nullable(data.UserID),
		nullable(data.IPAddress),
		nullable(data.UserAgent),
		now.Format(timeFormat),
		now.Format(timeFormat),
	)
	if err != nil {
		r.logger.Database().Error("Session insert failed",
			"error", err.Error(), "sessionId", sessionID, "siteId", siteID)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, siteID)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		// A concurrent create for the same (site, user) won the insert; the
		// winner's row is the session.
		if data.UserID != "" {
			return r.GetActiveSession(siteID, data.UserID)
		}
		return nil, fmt.Errorf("session insert affected no rows")
	}

	session := &analytics.Session{
		ID:           sessionID,
		SiteID:       siteID,
		UserID:       optional(data.UserID),
		IPAddress:    optional(data.IPAddress),
		UserAgent:    optional(data.UserAgent),
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
	}
	return session, nil
}

// TouchSession bumps lastActivity and refreshes the user agent when provided.
func (r *SQLSessionRepository) TouchSession(sessionID, userAgent string) error {
	const query = `
		UPDATE active_sessions
		SET last_activity = ?, user_agent = COALESCE(NULLIF(?, ''), user_agent)
		WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(query, time.Now().UTC().Format(timeFormat), userAgent, sessionID)
	if err != nil {
		r.logger.Database().Error("Session touch failed", "error", err.Error(), "sessionId", sessionID)
		return fmt.Errorf("failed to touch session %s: %w", sessionID, err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, "")
	}
	return nil
}

// EndSession marks a session inactive; ending an ended session is a no-op.
func (r *SQLSessionRepository) EndSession(sessionID string) error {
	const query = `UPDATE active_sessions SET is_active = 0 WHERE id = ? AND is_active = 1`

	if _, err := r.db.Exec(query, sessionID); err != nil {
		r.logger.Database().Error("Session end failed", "error", err.Error(), "sessionId", sessionID)
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	return nil
}

// ReapIdleSessions ends every active session idle since before the cutoff and
// returns the ended sessions for summary rollup.
func (r *SQLSessionRepository) ReapIdleSessions(cutoff time.Time) ([]*analytics.Session, error) {
	const selectQuery = `
		SELECT id, site_id, user_id, ip_address, user_agent, is_active, last_activity, created_at
		FROM active_sessions
		WHERE is_active = 1 AND last_activity < ?`
	const endQuery = `
		UPDATE active_sessions SET is_active = 0
		WHERE is_active = 1 AND last_activity < ?`

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin reap transaction: %w", err)
	}
	defer tx.Rollback()

	cutoffStr := cutoff.UTC().Format(timeFormat)

	rows, err := tx.Query(selectQuery, cutoffStr)
	if err != nil {
		return nil, fmt.Errorf("failed to select idle sessions: %w", err)
	}

	var reaped []*analytics.Session
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan idle session: %w", err)
		}
		session.IsActive = false
		reaped = append(reaped, session)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate idle sessions: %w", err)
	}
	rows.Close()

	if len(reaped) == 0 {
		return nil, tx.Commit()
	}

	if _, err := tx.Exec(endQuery, cutoffStr); err != nil {
		return nil, fmt.Errorf("failed to end idle sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reap transaction: %w", err)
	}

	return reaped, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLSessionRepository) scanSession(row rowScanner) (*analytics.Session, error) {
	var session analytics.Session
	var userID, ipAddress, userAgent sql.NullString
	var isActive int
	var lastActivity, createdAt string

	err := row.Scan(&session.ID, &session.SiteID, &userID, &ipAddress, &userAgent,
		&isActive, &lastActivity, &createdAt)
	if err != nil {
		return nil, err
	}

	session.UserID = fromNullString(userID)
	session.IPAddress = fromNullString(ipAddress)
	session.UserAgent = fromNullString(userAgent)
	session.IsActive = isActive == 1
	session.LastActivity = parseTime(lastActivity)
	session.CreatedAt = parseTime(createdAt)
	return &session, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
