// Package services contains the application services that orchestrate the
// ingestion pipeline between the HTTP layer and the infrastructure.
package services

import (
	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/domain/repositories"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/metrics"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/performance"
)

// SessionService stitches inbound events onto visitor sessions.
type SessionService struct {
	sessions repositories.SessionRepository
	logger   *logging.ChanneledLogger
	perf     *performance.Tracker
}

// NewSessionService creates a new session service.
func NewSessionService(sessions repositories.SessionRepository, logger *logging.ChanneledLogger, perf *performance.Tracker) *SessionService {
	return &SessionService{
		sessions: sessions,
		logger:   logger,
		perf:     perf,
	}
}

// CreateOrUpdateSession resolves the session an event belongs to: identified
// visitors reuse their active session when one exists, everything else gets a
// fresh session. Returns nil when session storage fails; the event still
// flows, just without a session id.
func (s *SessionService) CreateOrUpdateSession(siteID, userID, ipAddress, userAgent string) *analytics.Session {
	marker := s.perf.StartOperation("session_stitch", siteID)
	defer marker.Complete()

	if userID != "" {
		existing, err := s.sessions.GetActiveSession(siteID, userID)
		if err != nil {
			marker.SetError(err)
			s.logger.Session().Error("Session lookup failed, continuing without session",
				"error", err.Error(), "siteId", siteID)
			return nil
		}
		if existing != nil {
			if err := s.sessions.TouchSession(existing.ID, userAgent); err != nil {
				s.logger.Session().Warn("Session touch failed",
					"error", err.Error(), "sessionId", existing.ID)
			}
			metrics.SessionsReusedTotal.Inc()
			marker.SetSuccess(true)
			return existing
		}
	}

	created, err := s.sessions.CreateSession(siteID, repositories.SessionData{
		UserID:    userID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
	if err != nil {
		marker.SetError(err)
		s.logger.Session().Error("Session create failed, continuing without session",
			"error", err.Error(), "siteId", siteID)
		return nil
	}
	if created == nil {
		// Conflict re-read can miss when the winning session ends between the
		// insert and the lookup.
		s.logger.Session().Warn("Session create returned no row, continuing without session",
			"siteId", siteID, "identified", userID != "")
		return nil
	}

	metrics.SessionsCreatedTotal.Inc()
	marker.SetSuccess(true)
	s.logger.Session().Debug("Session created",
		"sessionId", created.ID, "siteId", siteID, "identified", userID != "")
	return created
}

// EndSession marks a session inactive ahead of its idle TTL.
func (s *SessionService) EndSession(sessionID string) error {
	if err := s.sessions.EndSession(sessionID); err != nil {
		return err
	}
	metrics.SessionsEndedTotal.Inc()
	return nil
}
