// Package cleanup hosts the background retention workers.
package cleanup

import (
	"context"
	"time"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/domain/repositories"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/metrics"
)

// SummaryWriter sinks per-session rollups for ended sessions.
type SummaryWriter interface {
	WriteSessionSummaries(ctx context.Context, summaries []*analytics.SessionSummary) error
}

// SessionReaper periodically ends sessions idle past their TTL and rolls each
// one up into a summary row in the columnar store.
type SessionReaper struct {
	sessions repositories.SessionRepository
	writer   SummaryWriter
	logger   *logging.ChanneledLogger
	idleTTL  time.Duration
	interval time.Duration
}

// NewSessionReaper creates a reaper; Run must be started by the caller.
func NewSessionReaper(
	sessions repositories.SessionRepository,
	writer SummaryWriter,
	logger *logging.ChanneledLogger,
	idleTTL, interval time.Duration,
) *SessionReaper {
	return &SessionReaper{
		sessions: sessions,
		writer:   writer,
		logger:   logger,
		idleTTL:  idleTTL,
		interval: interval,
	}
}

// Run loops until the context is cancelled, reaping on every tick.
func (r *SessionReaper) Run(ctx context.Context) {
	r.logger.Session().Info("Session reaper started",
		"idleTTL", r.idleTTL, "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.ReapOnce(ctx)
		case <-ctx.Done():
			r.logger.Session().Info("Session reaper stopped")
			return
		}
	}
}

// ReapOnce runs a single reap pass.
func (r *SessionReaper) ReapOnce(ctx context.Context) {
	start := time.Now()
	cutoff := start.Add(-r.idleTTL)
	log := r.logger.WithOperation(logging.ChannelSession, "session_reap")

	reaped, err := r.sessions.ReapIdleSessions(cutoff)
	if err != nil {
		log.Error("Session reap failed", "error", err.Error())
		return
	}
	if len(reaped) == 0 {
		return
	}

	metrics.SessionsEndedTotal.Add(float64(len(reaped)))

	summaries := make([]*analytics.SessionSummary, 0, len(reaped))
	for _, session := range reaped {
		summaries = append(summaries, summarize(session))
	}
	if err := r.writer.WriteSessionSummaries(ctx, summaries); err != nil {
		// Sessions stay ended; the summary rows for this pass are lost.
		log.Error("Session summary write failed",
			"error", err.Error(), "sessions", len(summaries))
		return
	}

	log.Info("Idle sessions reaped",
		"sessions", len(reaped), "cutoff", cutoff.UTC().Format(time.RFC3339), "duration", time.Since(start))
}

func summarize(session *analytics.Session) *analytics.SessionSummary {
	duration := session.LastActivity.Sub(session.CreatedAt)
	if duration < 0 {
		duration = 0
	}
	const layout = "2006-01-02 15:04:05"
	return &analytics.SessionSummary{
		SessionID:       session.ID,
		SiteID:          session.SiteID,
		UserID:          session.UserID,
		StartedAt:       session.CreatedAt.UTC().Format(layout),
		EndedAt:         session.LastActivity.UTC().Format(layout),
		DurationSeconds: uint32(duration.Seconds()),
		IP:              session.IPAddress,
		UserAgent:       session.UserAgent,
	}
}
