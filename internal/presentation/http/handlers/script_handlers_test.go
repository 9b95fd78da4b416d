package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
)

func newScriptRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, err := logging.NewChanneledLogger(nil)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/analytics.js", NewScriptHandlers(logger).GetScript)
	return r
}

func getScript(r *gin.Engine, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/analytics.js"+query, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetScriptServesJavascript(t *testing.T) {
	r := newScriptRouter(t)

	w := getScript(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/javascript")

	body := w.Body.String()
	assert.Contains(t, body, "window.openPulse")
	assert.NotContains(t, body, "__OPEN_PULSE_DEFAULTS__", "placeholder must be substituted")
	assert.Contains(t, body, `"debug":false`)
	assert.Contains(t, body, `"disabled":false`)
}

func TestGetScriptInjectsQueryDefaults(t *testing.T) {
	r := newScriptRouter(t)

	w := getScript(r, "?site_id=site_123&analytics_host=https://collect.example.com&debug=1&disabled=FALSE")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `"siteId":"site_123"`)
	assert.Contains(t, body, `"analyticsHost":"https://collect.example.com"`)
	assert.Contains(t, body, `"debug":true`)
	assert.Contains(t, body, `"disabled":false`)
}

func TestGetScriptTruthyGrammar(t *testing.T) {
	r := newScriptRouter(t)

	for query, want := range map[string]string{
		"?disabled=true":      `"disabled":true`,
		"?disabled=yes":       `"disabled":true`,
		"?disabled=0":         `"disabled":false`,
		"?disabled=null":      `"disabled":false`,
		"?disabled=undefined": `"disabled":false`,
		"?disabled=NaN":       `"disabled":false`,
	} {
		w := getScript(r, query)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), want, "query %s", query)
	}
}
