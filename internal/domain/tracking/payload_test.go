package tracking

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPageview() map[string]any {
	return map[string]any{
		"type":    "pageview",
		"site_id": "site_123",
	}
}

func parse(t *testing.T, payload map[string]any) (*Payload, []FieldError) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return ParsePayload(body)
}

func TestParsePayloadPageview(t *testing.T) {
	raw := validPageview()
	raw["hostname"] = "example.com"
	raw["pathname"] = "/pricing"
	raw["screenWidth"] = 1920
	raw["screenHeight"] = 1080

	p, errs := parse(t, raw)
	require.Empty(t, errs)
	assert.Equal(t, EventTypePageview, p.Type)
	assert.Equal(t, "site_123", p.SiteID)
	assert.Equal(t, 1920, p.ScreenWidth)
}

func TestParsePayloadRequiresSiteID(t *testing.T) {
	_, errs := parse(t, map[string]any{"type": "pageview"})
	require.Len(t, errs, 1)
	assert.Equal(t, "site_id", errs[0].Field)
}

func TestParsePayloadRejectsUnknownType(t *testing.T) {
	raw := validPageview()
	raw["type"] = "heartbeat"

	_, errs := parse(t, raw)
	require.Len(t, errs, 1)
	assert.Equal(t, "type", errs[0].Field)
}

func TestParsePayloadRejectsUnknownFields(t *testing.T) {
	raw := validPageview()
	raw["surprise"] = true

	_, errs := parse(t, raw)
	require.Len(t, errs, 1)
	assert.Equal(t, "surprise", errs[0].Field)
}

func TestParsePayloadFieldLimits(t *testing.T) {
	cases := []struct {
		field string
		limit int
	}{
		{"hostname", 253},
		{"pathname", 2048},
		{"querystring", 2048},
		{"language", 35},
		{"page_title", 512},
		{"referrer", 2048},
		{"event_name", 256},
		{"user_id", 255},
		{"api_key", 35},
		{"user_agent", 512},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			raw := validPageview()
			raw[tc.field] = strings.Repeat("a", tc.limit)
			_, errs := parse(t, raw)
			assert.Empty(t, errs, "value at the limit should pass")

			raw[tc.field] = strings.Repeat("a", tc.limit+1)
			_, errs = parse(t, raw)
			require.Len(t, errs, 1)
			assert.Equal(t, tc.field, errs[0].Field)
		})
	}
}

func TestParsePayloadRejectsNonPositiveScreenDimensions(t *testing.T) {
	raw := validPageview()
	raw["screenWidth"] = -1

	_, errs := parse(t, raw)
	require.Len(t, errs, 1)
	assert.Equal(t, "screenWidth", errs[0].Field)
}

func TestCustomEventRequiresEventName(t *testing.T) {
	raw := validPageview()
	raw["type"] = "custom_event"

	_, errs := parse(t, raw)
	require.Len(t, errs, 1)
	assert.Equal(t, "event_name", errs[0].Field)
}

func TestCustomEventPropertiesMustBeJSON(t *testing.T) {
	raw := validPageview()
	raw["type"] = "custom_event"
	raw["event_name"] = "signup"
	raw["properties"] = "{not json"

	_, errs := parse(t, raw)
	require.Len(t, errs, 1)
	assert.Equal(t, "properties", errs[0].Field)

	raw["properties"] = `{"plan":"pro"}`
	p, errs := parse(t, raw)
	require.Empty(t, errs)
	assert.Equal(t, `{"plan":"pro"}`, p.Properties)
}

func TestErrorEventRequiresStructuredProperties(t *testing.T) {
	raw := validPageview()
	raw["type"] = "error"
	raw["event_name"] = "js_error"

	_, errs := parse(t, raw)
	require.Len(t, errs, 1)
	assert.Equal(t, "properties", errs[0].Field)

	raw["properties"] = `{"stack":"at main"}`
	_, errs = parse(t, raw)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "message")

	raw["properties"] = `{"message":"boom","lineNumber":"12"}`
	_, errs = parse(t, raw)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "lineNumber")
}

func TestErrorEventAccepted(t *testing.T) {
	raw := validPageview()
	raw["type"] = "error"
	raw["event_name"] = "js_error"
	raw["properties"] = `{"message":"boom","stack":"at main.js:1","fileName":"main.js","lineNumber":12,"columnNumber":3}`

	p, errs := parse(t, raw)
	require.Empty(t, errs)

	details, err := p.ErrorDetails()
	require.NoError(t, err)
	assert.Equal(t, "boom", details.Message)
	assert.Equal(t, "main.js", details.FileName)
	require.NotNil(t, details.LineNumber)
	assert.Equal(t, float64(12), *details.LineNumber)
}

func TestErrorEventTruncatesMessageAndStack(t *testing.T) {
	longMessage := strings.Repeat("m", MaxErrorMessageLength+100)
	longStack := strings.Repeat("s", MaxErrorStackLength+100)
	props, err := json.Marshal(map[string]any{
		"message": longMessage,
		"stack":   longStack,
	})
	require.NoError(t, err)

	raw := validPageview()
	raw["type"] = "error"
	raw["event_name"] = "js_error"
	raw["properties"] = string(props)

	p, errs := parse(t, raw)
	require.Empty(t, errs)

	// The stored properties must carry the truncated values.
	details, err := p.ErrorDetails()
	require.NoError(t, err)
	assert.Len(t, details.Message, MaxErrorMessageLength)
	assert.Len(t, details.Stack, MaxErrorStackLength)
}

func TestParsePayloadInvalidBody(t *testing.T) {
	_, errs := ParsePayload([]byte("not json at all"))
	require.Len(t, errs, 1)
	assert.Equal(t, "body", errs[0].Field)
}
