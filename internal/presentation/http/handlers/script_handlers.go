package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openpulse/openpulse-go/internal/domain/tracking"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/web"
)

const defaultsPlaceholder = "__OPEN_PULSE_DEFAULTS__"

// scriptDefaults are the server-injected tracker defaults. Script-tag data
// attributes always take precedence in the browser.
type scriptDefaults struct {
	Debug         bool   `json:"debug"`
	Disabled      bool   `json:"disabled"`
	SiteID        string `json:"siteId"`
	AnalyticsHost string `json:"analyticsHost"`
}

// ScriptHandlers serves the embeddable browser tracker.
type ScriptHandlers struct {
	logger *logging.ChanneledLogger
}

// NewScriptHandlers creates script handlers with injected dependencies
func NewScriptHandlers(logger *logging.ChanneledLogger) *ScriptHandlers {
	return &ScriptHandlers{logger: logger}
}

// GetScript handles GET /analytics.js - serves the tracker with defaults
// taken from the query string: site_id, analytics_host, debug, disabled. The
// boolean params accept the same truthy grammar the script itself uses.
func (h *ScriptHandlers) GetScript(c *gin.Context) {
	defaults := scriptDefaults{
		Debug:         tracking.IsTruthy(c.Query("debug")),
		Disabled:      tracking.IsTruthy(c.Query("disabled")),
		SiteID:        c.Query("site_id"),
		AnalyticsHost: c.Query("analytics_host"),
	}

	encoded, err := json.Marshal(defaults)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	script := strings.Replace(web.AnalyticsScript, defaultsPlaceholder, string(encoded), 1)

	h.logger.Track().Debug("Tracker script served",
		"siteId", defaults.SiteID, "debug", defaults.Debug, "disabled", defaults.Disabled)

	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(script))
}
