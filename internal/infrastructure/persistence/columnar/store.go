// Package columnar manages the ClickHouse analytical store: schema bootstrap,
// batched event inserts, and session summary rollups. The hourly rollup is a
// materialized view; the application never writes summary aggregates itself.
package columnar

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/pkg/config"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS analytics_event (
		timestamp DateTime CODEC(DoubleDelta, ZSTD(1)) DEFAULT now(),
		site_id String,
		session_id String,
		user_id Nullable(String),
		hostname String,
		pathname String,
		querystring Nullable(String),
		page_title Nullable(String),
		referrer Nullable(String),
		referrer_hostname Nullable(String),
		referrer_pathname Nullable(String),
		browser LowCardinality(String),
		browser_version LowCardinality(String),
		operating_system LowCardinality(String),
		operating_system_version LowCardinality(String),
		device_type LowCardinality(String),
		language LowCardinality(String),
		screen_width UInt16,
		screen_height UInt16,
		country LowCardinality(FixedString(2)),
		region LowCardinality(String),
		city Nullable(String),
		lat Nullable(Float64),
		lon Nullable(Float64),
		ip Nullable(String),
		timezone LowCardinality(String),
		channel LowCardinality(String),
		utm_source Nullable(String),
		utm_medium Nullable(String),
		utm_campaign Nullable(String),
		utm_content Nullable(String),
		utm_term Nullable(String),
		type LowCardinality(String) DEFAULT 'pageview',
		event_name Nullable(String),
		lcp Nullable(Float64),
		cls Nullable(Float64),
		inp Nullable(Float64),
		fcp Nullable(Float64),
		ttfb Nullable(Float64),
		props Nullable(String)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (site_id, timestamp, session_id)
	TTL timestamp + INTERVAL 90 DAY`,

	`CREATE TABLE IF NOT EXISTS analytics_session (
		session_id String,
		site_id String,
		user_id Nullable(String),
		started_at DateTime,
		ended_at DateTime,
		duration_seconds UInt32,
		ip Nullable(String),
		user_agent Nullable(String)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(started_at)
	ORDER BY (site_id, started_at)
	TTL started_at + INTERVAL 90 DAY`,

	`CREATE TABLE IF NOT EXISTS analytics_error (
		timestamp DateTime,
		site_id String,
		session_id String,
		user_id Nullable(String),
		hostname String,
		pathname String,
		message String,
		stack Nullable(String),
		file_name Nullable(String),
		line_number Nullable(Float64),
		column_number Nullable(Float64),
		browser LowCardinality(String),
		operating_system LowCardinality(String),
		device_type LowCardinality(String),
		country LowCardinality(FixedString(2))
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (site_id, timestamp)
	TTL timestamp + INTERVAL 30 DAY`,

	`CREATE TABLE IF NOT EXISTS analytics_hourly_summary (
		site_id String,
		hour DateTime,
		pageviews AggregateFunction(countIf, UInt8),
		custom_events AggregateFunction(countIf, UInt8),
		errors AggregateFunction(countIf, UInt8),
		sessions AggregateFunction(uniq, String)
	) ENGINE = AggregatingMergeTree()
	PARTITION BY toYYYYMM(hour)
	ORDER BY (site_id, hour)
	TTL hour + INTERVAL 60 DAY`,

	`CREATE MATERIALIZED VIEW IF NOT EXISTS analytics_hourly_summary_mv
	TO analytics_hourly_summary AS
	SELECT
		site_id,
		toStartOfHour(timestamp) AS hour,
		countIfState(type = 'pageview') AS pageviews,
		countIfState(type = 'custom_event') AS custom_events,
		countIfState(type = 'error') AS errors,
		uniqState(session_id) AS sessions
	FROM analytics_event
	GROUP BY site_id, hour`,
}

// Store wraps the native ClickHouse connection for the analytical tables.
type Store struct {
	conn   driver.Conn
	logger *logging.ChanneledLogger
}

// NewStore opens and verifies a connection to the columnar store.
func NewStore(ctx context.Context, logger *logging.ChanneledLogger) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: config.ClickHouseDatabase,
			Username: config.ClickHouseUser,
			Password: config.ClickHousePassword,
		},
		DialTimeout: config.ClickHouseDialTimeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open columnar store connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping columnar store at %s: %w", config.ClickHouseAddr, err)
	}

	logger.Columnar().Info("Columnar store connection established",
		"addr", config.ClickHouseAddr, "database", config.ClickHouseDatabase)
	return &Store{conn: conn, logger: logger}, nil
}

// Ping verifies the connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Setup creates the analytical tables and the hourly rollup view.
func (s *Store) Setup(ctx context.Context) error {
	start := time.Now()
	for _, stmt := range schemaStatements {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set up columnar schema: %w", err)
		}
	}
	s.logger.Columnar().Info("Columnar schema ensured", "duration", time.Since(start))
	return nil
}

// WriteBatch inserts a batch of enriched events into analytics_event. Error
// events additionally land as structured rows in analytics_error; one bad
// error payload skips its row without failing the batch.
func (s *Store) WriteBatch(ctx context.Context, events []*analytics.Event) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO analytics_event")
	if err != nil {
		return fmt.Errorf("failed to prepare event batch: %w", err)
	}

	var errorEvents []*analytics.Event
	for _, event := range events {
		SerializeEvent(event)
		if err := batch.AppendStruct(event); err != nil {
			return fmt.Errorf("failed to append event for session %s: %w", event.SessionID, err)
		}
		if event.Type == "error" {
			errorEvents = append(errorEvents, event)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send event batch: %w", err)
	}

	if err := s.writeErrorRows(ctx, errorEvents); err != nil {
		return err
	}

	duration := time.Since(start)
	s.logger.Columnar().Debug("Event batch written",
		"events", len(events), "errors", len(errorEvents), "duration", duration)
	if duration > config.SlowOpThreshold {
		s.logger.Perf().Warn("Slow columnar insert", "events", len(events), "duration", duration)
	}
	return nil
}

func (s *Store) writeErrorRows(ctx context.Context, events []*analytics.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO analytics_error")
	if err != nil {
		return fmt.Errorf("failed to prepare error batch: %w", err)
	}

	appended := 0
	for _, event := range events {
		row, err := BuildErrorRow(event)
		if err != nil {
			s.logger.Columnar().Warn("Skipping malformed error row",
				"error", err.Error(), "sessionId", event.SessionID, "siteId", event.SiteID)
			continue
		}
		if err := batch.AppendStruct(row); err != nil {
			return fmt.Errorf("failed to append error row for session %s: %w", event.SessionID, err)
		}
		appended++
	}

	if appended == 0 {
		return batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send error batch: %w", err)
	}
	return nil
}

// WriteSessionSummaries inserts ended-session rollups into analytics_session.
func (s *Store) WriteSessionSummaries(ctx context.Context, summaries []*analytics.SessionSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO analytics_session")
	if err != nil {
		return fmt.Errorf("failed to prepare session summary batch: %w", err)
	}
	for _, summary := range summaries {
		if err := batch.AppendStruct(summary); err != nil {
			return fmt.Errorf("failed to append session summary %s: %w", summary.SessionID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send session summary batch: %w", err)
	}

	s.logger.Columnar().Debug("Session summaries written", "sessions", len(summaries))
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
