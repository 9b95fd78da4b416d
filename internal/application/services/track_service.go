package services

import (
	"errors"
	"time"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/domain/repositories"
	"github.com/openpulse/openpulse-go/internal/domain/tracking"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/metrics"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/performance"
	"github.com/openpulse/openpulse-go/internal/infrastructure/queue"
)

// Sentinel errors the HTTP layer maps onto response codes.
var (
	ErrSiteNotFound = errors.New("site not found")
	ErrQueueFull    = errors.New("event queue at capacity")
)

// TrackResult is the acknowledgment for an accepted beacon. SessionID is
// empty when session stitching failed and the event was not persisted.
type TrackResult struct {
	Type      string
	SiteID    string
	SessionID string
}

// TrackService runs the ingestion path: site resolution, enrichment, session
// stitching, and enqueueing for the columnar store.
type TrackService struct {
	sites    repositories.SiteRepository
	sessions *SessionService
	queue    queue.EventQueue
	logger   *logging.ChanneledLogger
	perf     *performance.Tracker
}

// NewTrackService creates a new track service.
func NewTrackService(
	sites repositories.SiteRepository,
	sessions *SessionService,
	eventQueue queue.EventQueue,
	logger *logging.ChanneledLogger,
	perf *performance.Tracker,
) *TrackService {
	return &TrackService{
		sites:    sites,
		sessions: sessions,
		queue:    eventQueue,
		logger:   logger,
		perf:     perf,
	}
}

// ProcessEvent handles one validated beacon. The payload's own ip_address and
// user_agent take precedence over the request-derived values; the timestamp
// is always server-assigned.
func (s *TrackService) ProcessEvent(payload *tracking.Payload, requestIP, requestUserAgent string) (*TrackResult, error) {
	marker := s.perf.StartOperation("process_event", payload.SiteID)
	marker.AddMetadata("type", string(payload.Type))
	defer marker.Complete()

	log := s.logger.WithSite(logging.ChannelTrack, payload.SiteID)

	site, err := s.sites.GetSiteConfig(payload.SiteID)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	if site == nil {
		log.Debug("Site not found")
		metrics.EventsRejectedTotal.WithLabelValues("unknown_site").Inc()
		return nil, ErrSiteNotFound
	}

	metrics.EventsReceivedTotal.WithLabelValues(string(payload.Type)).Inc()

	ipAddress := payload.IPAddress
	if ipAddress == "" {
		ipAddress = requestIP
	}
	userAgent := payload.UserAgent
	if userAgent == "" {
		userAgent = requestUserAgent
	}

	result := &TrackResult{
		Type:   string(payload.Type),
		SiteID: site.ID,
	}

	session := s.sessions.CreateOrUpdateSession(site.ID, payload.UserID, ipAddress, userAgent)
	if session == nil {
		// The beacon is acknowledged but not persisted; an event without a
		// session would be unattributable.
		log.Warn("Event not persisted, no session", "type", payload.Type)
		return result, nil
	}
	result.SessionID = session.ID

	event := buildEvent(payload, session.ID, ipAddress)
	if !s.queue.Add(event) {
		marker.SetError(ErrQueueFull)
		return nil, ErrQueueFull
	}

	marker.SetSuccess(true)
	return result, nil
}

// buildEvent flattens a validated payload into the columnar record. Referrer
// decomposition, UA classification, geolocation and attribution stay at their
// placeholder values until an enrichment step populates them.
func buildEvent(p *tracking.Payload, sessionID, ipAddress string) *analytics.Event {
	return &analytics.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		SiteID:    p.SiteID,
		SessionID: sessionID,
		UserID:    optionalString(p.UserID),

		Hostname:    defaultString(p.Hostname, "unknown"),
		Pathname:    defaultString(p.Pathname, "/"),
		Querystring: optionalString(p.Querystring),
		PageTitle:   optionalString(p.PageTitle),
		Referrer:    optionalString(p.Referrer),

		Browser:                "unknown",
		BrowserVersion:         "0",
		OperatingSystem:        "unknown",
		OperatingSystemVersion: "0",
		DeviceType:             "unknown",
		Language:               p.Language,

		ScreenWidth:  clampScreen(p.ScreenWidth),
		ScreenHeight: clampScreen(p.ScreenHeight),

		Country:  "XX",
		Region:   "unknown",
		IP:       optionalString(ipAddress),
		Timezone: "UTC",

		Channel: "direct",

		Type:      string(p.Type),
		EventName: optionalString(p.EventName),

		Props: optionalString(p.Properties),
	}
}

func clampScreen(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
