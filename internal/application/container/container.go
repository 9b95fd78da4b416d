// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/openpulse/openpulse-go/internal/application/services"
	"github.com/openpulse/openpulse-go/internal/domain/repositories"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/performance"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/columnar"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/database"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/sessions"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/sites"
	"github.com/openpulse/openpulse-go/internal/infrastructure/queue"
	"github.com/openpulse/openpulse-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services
	SessionService *services.SessionService
	TrackService   *services.TrackService

	// Repositories
	SiteRepo    repositories.SiteRepository
	SessionRepo repositories.SessionRepository

	// Infrastructure
	DB          *database.DB
	Columnar    *columnar.Store
	EventQueue  queue.EventQueue
	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker
}

// NewContainer creates and wires all singleton services
func NewContainer(db *database.DB, store *columnar.Store, logger *logging.ChanneledLogger) *Container {
	perfTracker := performance.NewTracker(0)

	eventQueue := queue.NewInMemoryEventQueue(store, logger, queue.Options{
		BatchSize:     config.QueueBatchSize,
		FlushInterval: config.QueueFlushInterval,
		MaxDepth:      config.QueueMaxDepth,
		MaxRetries:    config.FlushMaxRetries,
		RetryBaseWait: config.FlushRetryBaseWait,
	})

	siteRepo := sites.NewSQLSiteRepository(db, logger)
	sessionRepo := sessions.NewSQLSessionRepository(db, logger)

	sessionService := services.NewSessionService(sessionRepo, logger, perfTracker)
	trackService := services.NewTrackService(siteRepo, sessionService, eventQueue, logger, perfTracker)

	return &Container{
		SessionService: sessionService,
		TrackService:   trackService,

		SiteRepo:    siteRepo,
		SessionRepo: sessionRepo,

		DB:          db,
		Columnar:    store,
		EventQueue:  eventQueue,
		Logger:      logger,
		PerfTracker: perfTracker,
	}
}
