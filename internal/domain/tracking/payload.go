// Package tracking defines the wire schema for inbound tracking beacons and
// the strict validation applied before any processing.
package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EventType discriminates the three payload variants.
type EventType string

const (
	EventTypePageview    EventType = "pageview"
	EventTypeCustomEvent EventType = "custom_event"
	EventTypeError       EventType = "error"
)

// Truncation limits applied to error properties before storage.
const (
	MaxErrorMessageLength = 500
	MaxErrorStackLength   = 2000

	maxPropertiesLength      = 2048
	maxErrorPropertiesLength = 4096
)

// Payload is the tracking beacon wire format. One of three variants applies,
// discriminated by Type; variant-specific rules are enforced in Validate.
type Payload struct {
	Type         EventType `json:"type" validate:"required"`
	SiteID       string    `json:"site_id" validate:"required"`
	Hostname     string    `json:"hostname,omitempty" validate:"max=253"`
	Pathname     string    `json:"pathname,omitempty" validate:"max=2048"`
	Querystring  string    `json:"querystring,omitempty" validate:"max=2048"`
	ScreenWidth  int       `json:"screenWidth,omitempty" validate:"omitempty,gt=0"`
	ScreenHeight int       `json:"screenHeight,omitempty" validate:"omitempty,gt=0"`
	Language     string    `json:"language,omitempty" validate:"max=35"`
	PageTitle    string    `json:"page_title,omitempty" validate:"max=512"`
	Referrer     string    `json:"referrer,omitempty" validate:"max=2048"`
	EventName    string    `json:"event_name,omitempty" validate:"max=256"`
	Properties   string    `json:"properties,omitempty"`
	UserID       string    `json:"user_id,omitempty" validate:"max=255"`
	APIKey       string    `json:"api_key,omitempty" validate:"max=35"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty" validate:"max=512"`
}

// ErrorDetails is the structured shape required inside an error payload's
// properties JSON.
type ErrorDetails struct {
	Message      string   `json:"message"`
	Stack        string   `json:"stack,omitempty"`
	FileName     string   `json:"fileName,omitempty"`
	LineNumber   *float64 `json:"lineNumber,omitempty"`
	ColumnNumber *float64 `json:"columnNumber,omitempty"`
}

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report wire field names, not Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParsePayload decodes and validates a raw tracking beacon body. The schema
// is strict: unknown top-level fields, unknown types, oversized strings, and
// malformed properties JSON are all rejected with field-level detail.
func ParsePayload(body []byte) (*Payload, []FieldError) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, []FieldError{decodeError(err)}
	}
	if errs := p.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &p, nil
}

// Validate applies common and variant-specific rules, mutating the payload
// only to enforce the error truncation policy.
func (p *Payload) Validate() []FieldError {
	var errs []FieldError

	if err := validate.Struct(p); err != nil {
		if invalid, ok := err.(*validator.InvalidValidationError); ok {
			return []FieldError{{Field: "payload", Message: invalid.Error()}}
		}
		for _, fe := range err.(validator.ValidationErrors) {
			errs = append(errs, FieldError{Field: fe.Field(), Message: tagMessage(fe)})
		}
	}

	switch p.Type {
	case EventTypePageview:
		// No additional requirements.
	case EventTypeCustomEvent:
		if p.EventName == "" {
			errs = append(errs, FieldError{Field: "event_name", Message: "event_name is required for custom_event"})
		}
		if p.Properties != "" {
			if len(p.Properties) > maxPropertiesLength {
				errs = append(errs, FieldError{Field: "properties", Message: fmt.Sprintf("properties must be at most %d characters", maxPropertiesLength)})
			} else if !json.Valid([]byte(p.Properties)) {
				errs = append(errs, FieldError{Field: "properties", Message: "properties must be a valid JSON string"})
			}
		}
	case EventTypeError:
		if p.EventName == "" {
			errs = append(errs, FieldError{Field: "event_name", Message: "event_name is required for error"})
		}
		if p.Properties == "" {
			errs = append(errs, FieldError{Field: "properties", Message: "properties is required for error"})
		} else if len(p.Properties) > maxErrorPropertiesLength {
			errs = append(errs, FieldError{Field: "properties", Message: fmt.Sprintf("properties must be at most %d characters", maxErrorPropertiesLength)})
		} else if details, err := parseErrorDetails(p.Properties); err != nil {
			errs = append(errs, FieldError{Field: "properties", Message: err.Error()})
		} else {
			// Truncation happens at acceptance time so every downstream
			// consumer sees the bounded values.
			truncated := truncateErrorDetails(details)
			if raw, err := json.Marshal(truncated); err == nil {
				p.Properties = string(raw)
			}
		}
	default:
		errs = append(errs, FieldError{Field: "type", Message: fmt.Sprintf("unknown event type %q", p.Type)})
	}

	return errs
}

// ErrorDetails parses the structured error properties of an error payload.
// Valid only after Validate has accepted the payload.
func (p *Payload) ErrorDetails() (*ErrorDetails, error) {
	if p.Type != EventTypeError {
		return nil, fmt.Errorf("payload type %q carries no error details", p.Type)
	}
	return parseErrorDetails(p.Properties)
}

func parseErrorDetails(properties string) (*ErrorDetails, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(properties), &raw); err != nil {
		return nil, fmt.Errorf("properties must be valid JSON with error fields")
	}

	details := &ErrorDetails{}
	msg, ok := raw["message"].(string)
	if !ok {
		return nil, fmt.Errorf("properties.message is required and must be a string")
	}
	details.Message = msg

	if v, present := raw["stack"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("properties.stack must be a string")
		}
		details.Stack = s
	}
	if v, present := raw["fileName"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("properties.fileName must be a string")
		}
		details.FileName = s
	}
	if v, present := raw["lineNumber"]; present && v != nil {
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("properties.lineNumber must be a number")
		}
		details.LineNumber = &n
	}
	if v, present := raw["columnNumber"]; present && v != nil {
		n, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("properties.columnNumber must be a number")
		}
		details.ColumnNumber = &n
	}

	return details, nil
}

func truncateErrorDetails(d *ErrorDetails) *ErrorDetails {
	out := *d
	if len(out.Message) > MaxErrorMessageLength {
		out.Message = out.Message[:MaxErrorMessageLength]
	}
	if len(out.Stack) > MaxErrorStackLength {
		out.Stack = out.Stack[:MaxErrorStackLength]
	}
	return &out
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation on %s", fe.Field(), fe.Tag())
	}
}

func decodeError(err error) FieldError {
	msg := err.Error()
	if strings.Contains(msg, "unknown field") {
		field := msg[strings.Index(msg, "\"")+1:]
		field = strings.TrimSuffix(field, "\"")
		return FieldError{Field: field, Message: "unknown field"}
	}
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return FieldError{Field: ute.Field, Message: fmt.Sprintf("expected %s", ute.Type)}
	}
	return FieldError{Field: "body", Message: "invalid JSON body"}
}
