// Package sites provides the SQL-based implementation of site resolution.
//
// PURPOSE: confirm an inbound site_id maps to a known, existing site before
// an event is accepted. Read-only on the hot ingestion path.
package sites

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/database"
	"github.com/openpulse/openpulse-go/pkg/config"
)

// SQLSiteRepository resolves sites against the tenant store.
type SQLSiteRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLSiteRepository creates a new instance of the repository.
func NewSQLSiteRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLSiteRepository {
	return &SQLSiteRepository{
		db:     db,
		logger: logger,
	}
}

// GetSiteConfig returns the site for the given id, or nil when unknown.
func (r *SQLSiteRepository) GetSiteConfig(siteID string) (*analytics.Site, error) {
	const query = `
		SELECT id, name, domain, COALESCE(organization_id, '')
		FROM sites WHERE id = ?`

	start := time.Now()

	var site analytics.Site
	err := r.db.QueryRow(query, siteID).Scan(&site.ID, &site.Name, &site.Domain, &site.OrganizationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Database().Error("Site lookup failed", "error", err.Error(), "siteId", siteID)
		return nil, fmt.Errorf("failed to look up site %s: %w", siteID, err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, siteID)
	}
	return &site, nil
}
