package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/openpulse-go/internal/application/services"
	"github.com/openpulse/openpulse-go/internal/domain/analytics"
	"github.com/openpulse/openpulse-go/internal/domain/repositories"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/logging"
	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/performance"
)

type stubSiteRepo struct {
	sites map[string]*analytics.Site
}

func (r *stubSiteRepo) GetSiteConfig(siteID string) (*analytics.Site, error) {
	return r.sites[siteID], nil
}

type stubSessionRepo struct {
	nextID int
}

func (r *stubSessionRepo) GetActiveSession(_, _ string) (*analytics.Session, error) {
	return nil, nil
}

func (r *stubSessionRepo) CreateSession(siteID string, data repositories.SessionData) (*analytics.Session, error) {
	r.nextID++
	s := &analytics.Session{
		ID:       fmt.Sprintf("se_%06d", r.nextID),
		SiteID:   siteID,
		IsActive: true,
	}
	if data.UserID != "" {
		userID := data.UserID
		s.UserID = &userID
	}
	return s, nil
}

func (r *stubSessionRepo) TouchSession(_, _ string) error { return nil }
func (r *stubSessionRepo) EndSession(_ string) error      { return nil }
func (r *stubSessionRepo) ReapIdleSessions(_ time.Time) ([]*analytics.Session, error) {
	return nil, nil
}

type captureQueue struct {
	events []*analytics.Event
	full   bool
}

func (q *captureQueue) Add(e *analytics.Event) bool {
	if q.full {
		return false
	}
	q.events = append(q.events, e)
	return true
}
func (q *captureQueue) Start() {}
func (q *captureQueue) Stop()  {}

func newTestRouter(t *testing.T, q *captureQueue) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := logging.NewChanneledLogger(nil)
	require.NoError(t, err)
	perf := performance.NewTracker(100)

	siteRepo := &stubSiteRepo{sites: map[string]*analytics.Site{
		"site_123": {ID: "site_123", Name: "Example", Domain: "example.com"},
	}}
	sessionSvc := services.NewSessionService(&stubSessionRepo{}, logger, perf)
	trackSvc := services.NewTrackService(siteRepo, sessionSvc, q, logger, perf)

	h := NewTrackHandlers(trackSvc, logger, perf)
	r := gin.New()
	r.POST("/track", h.PostTrack)
	return r
}

func postTrack(r *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostTrackAcceptsPageview(t *testing.T) {
	q := &captureQueue{}
	r := newTestRouter(t, q)

	w := postTrack(r, `{"type":"pageview","site_id":"site_123","pathname":"/pricing"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Type      string `json:"type"`
			SiteID    string `json:"site_id"`
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "pageview", resp.Data.Type)
	assert.Equal(t, "site_123", resp.Data.SiteID)
	assert.NotEmpty(t, resp.Data.SessionID)

	require.Len(t, q.events, 1)
	assert.Equal(t, resp.Data.SessionID, q.events[0].SessionID)
}

func TestPostTrackValidationFailure(t *testing.T) {
	r := newTestRouter(t, &captureQueue{})

	w := postTrack(r, `{"type":"pageview"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Success          bool   `json:"success"`
		ErrorCode        string `json:"errorCode"`
		ValidationErrors []struct {
			Field string `json:"field"`
		} `json:"validationErrors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode)
	require.Len(t, resp.ValidationErrors, 1)
	assert.Equal(t, "site_id", resp.ValidationErrors[0].Field)
}

func TestPostTrackMalformedBody(t *testing.T) {
	r := newTestRouter(t, &captureQueue{})
	w := postTrack(r, "this is not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostTrackUnknownSite(t *testing.T) {
	r := newTestRouter(t, &captureQueue{})
	w := postTrack(r, `{"type":"pageview","site_id":"site_missing"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostTrackQueueFull(t *testing.T) {
	r := newTestRouter(t, &captureQueue{full: true})
	w := postTrack(r, `{"type":"pageview","site_id":"site_123"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPostTrackUsesRequestIP(t *testing.T) {
	q := &captureQueue{}
	r := newTestRouter(t, q)

	w := postTrack(r, `{"type":"pageview","site_id":"site_123"}`, map[string]string{
		"x-forwarded-for": "203.0.113.9, 10.0.0.1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, q.events, 1)
	require.NotNil(t, q.events[0].IP)
	assert.Equal(t, "203.0.113.9", *q.events[0].IP)
}

func TestGetIPAddressPriority(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name: "cloudflare header wins",
			headers: map[string]string{
				"cf-connecting-ip": "198.51.100.7",
				"x-forwarded-for":  "203.0.113.9",
				"x-real-ip":        "192.0.2.1",
			},
			want: "198.51.100.7",
		},
		{
			name: "first forwarded entry",
			headers: map[string]string{
				"x-forwarded-for": " 203.0.113.9 , 10.0.0.1",
				"x-real-ip":       "192.0.2.1",
			},
			want: "203.0.113.9",
		},
		{
			name:    "real ip fallback",
			headers: map[string]string{"x-real-ip": "192.0.2.1"},
			want:    "192.0.2.1",
		},
		{
			name:    "no headers",
			headers: map[string]string{},
			want:    "",
		},
	}

	gin.SetMode(gin.TestMode)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/track", nil).WithContext(context.Background())
			for k, v := range tc.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, GetIPAddress(c))
		})
	}
}
