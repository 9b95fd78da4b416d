package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/domain/repositories"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
)

type reapOnlyRepo struct {
	idle []*analytics.Session
	err  error
	got  time.Time
}

func (r *reapOnlyRepo) GetActiveSession(_, _ string) (*analytics.Session, error) { return nil, nil }
func (r *reapOnlyRepo) CreateSession(_ string, _ repositories.SessionData) (*analytics.Session, error) {
	return nil, nil
}
func (r *reapOnlyRepo) TouchSession(_, _ string) error { return nil }
func (r *reapOnlyRepo) EndSession(_ string) error      { return nil }
func (r *reapOnlyRepo) ReapIdleSessions(cutoff time.Time) ([]*analytics.Session, error) {
	r.got = cutoff
	return r.idle, r.err
}

type captureSummaryWriter struct {
	summaries []*analytics.SessionSummary
	err       error
}

func (w *captureSummaryWriter) WriteSessionSummaries(_ context.Context, s []*analytics.SessionSummary) error {
	if w.err != nil {
		return w.err
	}
	w.summaries = append(w.summaries, s...)
	return nil
}

func newReaper(t *testing.T, repo *reapOnlyRepo, writer *captureSummaryWriter) *SessionReaper {
	t.Helper()
	logger, err := logging.NewChanneledLogger(nil)
	require.NoError(t, err)
	return NewSessionReaper(repo, writer, logger, 30*time.Minute, time.Minute)
}

func TestReapOnceWritesSummaries(t *testing.T) {
	userID := "user_1"
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &reapOnlyRepo{idle: []*analytics.Session{{
		ID:           "se_old",
		SiteID:       "site_123",
		UserID:       &userID,
		LastActivity: started.Add(42 * time.Minute),
		CreatedAt:    started,
	}}}
	writer := &captureSummaryWriter{}

	newReaper(t, repo, writer).ReapOnce(context.Background())

	require.Len(t, writer.summaries, 1)
	s := writer.summaries[0]
	assert.Equal(t, "se_old", s.SessionID)
	assert.Equal(t, "site_123", s.SiteID)
	assert.Equal(t, "2026-03-01 10:00:00", s.StartedAt)
	assert.Equal(t, "2026-03-01 10:42:00", s.EndedAt)
	assert.Equal(t, uint32(42*60), s.DurationSeconds)

	assert.WithinDuration(t, time.Now().Add(-30*time.Minute), repo.got, time.Minute)
}

func TestReapOnceNothingIdle(t *testing.T) {
	writer := &captureSummaryWriter{}
	newReaper(t, &reapOnlyRepo{}, writer).ReapOnce(context.Background())
	assert.Empty(t, writer.summaries)
}

func TestReapOnceToleratesFailures(t *testing.T) {
	writer := &captureSummaryWriter{err: errors.New("store down")}
	repo := &reapOnlyRepo{idle: []*analytics.Session{{ID: "se_old", SiteID: "site_123"}}}

	// Neither a repo error nor a writer error may panic or retry forever.
	newReaper(t, repo, writer).ReapOnce(context.Background())
	newReaper(t, &reapOnlyRepo{err: errors.New("db down")}, writer).ReapOnce(context.Background())
	assert.Empty(t, writer.summaries)
}
