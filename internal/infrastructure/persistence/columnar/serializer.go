package columnar

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/openpulse/openpulse-go/internal/domain/analytics"
)

// TimeLayout is the DateTime text format the columnar store accepts.
const TimeLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	TimeLayout,
	"2006-01-02",
}

// FormatTimestamp converts a client-reported timestamp into the DateTime
// layout, in UTC. Empty or unparseable input falls back to the current time;
// formatting never fails, a bad timestamp must not lose the event.
func FormatTimestamp(raw string) string {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(TimeLayout)
		}
	}
	return time.Now().UTC().Format(TimeLayout)
}

// NormalizeCountry coerces a country code into exactly two uppercase letters
// for the FixedString(2) column, defaulting to the unknown marker "XX".
func NormalizeCountry(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return "XX"
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "XX"
		}
	}
	return code
}

// SerializeEvent normalizes an enriched event in place so every value is safe
// for its column type before it joins an insert batch.
func SerializeEvent(e *analytics.Event) {
	e.Timestamp = FormatTimestamp(e.Timestamp)
	e.Country = NormalizeCountry(e.Country)
	if e.Type == "" {
		e.Type = "pageview"
	}
}

// ErrorRow is the analytics_error record split out of an error-type event. The
// structured fields come from the event's validated properties payload.
type ErrorRow struct {
	Timestamp       string   `ch:"timestamp"`
	SiteID          string   `ch:"site_id"`
	SessionID       string   `ch:"session_id"`
	UserID          *string  `ch:"user_id"`
	Hostname        string   `ch:"hostname"`
	Pathname        string   `ch:"pathname"`
	Message         string   `ch:"message"`
	Stack           *string  `ch:"stack"`
	FileName        *string  `ch:"file_name"`
	LineNumber      *float64 `ch:"line_number"`
	ColumnNumber    *float64 `ch:"column_number"`
	Browser         string   `ch:"browser"`
	OperatingSystem string   `ch:"operating_system"`
	DeviceType      string   `ch:"device_type"`
	Country         string   `ch:"country"`
}

type errorProps struct {
	Message      string   `json:"message"`
	Stack        *string  `json:"stack"`
	FileName     *string  `json:"fileName"`
	LineNumber   *float64 `json:"lineNumber"`
	ColumnNumber *float64 `json:"columnNumber"`
}

// BuildErrorRow derives an analytics_error row from an error-type event. The
// properties were validated and truncated at ingestion, so a decode failure
// here means the event was corrupted in flight; the caller skips the row.
func BuildErrorRow(e *analytics.Event) (*ErrorRow, error) {
	if e.Props == nil {
		return nil, errors.New("error event carries no properties")
	}

	var props errorProps
	if err := json.Unmarshal([]byte(*e.Props), &props); err != nil {
		return nil, err
	}

	return &ErrorRow{
		Timestamp:       e.Timestamp,
		SiteID:          e.SiteID,
		SessionID:       e.SessionID,
		UserID:          e.UserID,
		Hostname:        e.Hostname,
		Pathname:        e.Pathname,
		Message:         props.Message,
		Stack:           props.Stack,
		FileName:        props.FileName,
		LineNumber:      props.LineNumber,
		ColumnNumber:    props.ColumnNumber,
		Browser:         e.Browser,
		OperatingSystem: e.OperatingSystem,
		DeviceType:      e.DeviceType,
		Country:         e.Country,
	}, nil
}
