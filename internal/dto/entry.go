package dto

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Severity ranks an ErrorEntry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severities = []Severity{
	SeverityInfo,
	SeverityWarning,
	SeverityError,
	SeverityCritical,
}

// ParseSeverity validates a string as a known severity.
func ParseSeverity(s string) (Severity, error) {
	v := Severity(s)
	if !slices.Contains(severities, v) {
		return "", fmt.Errorf("%w: unknown severity %q", ErrValidation, s)
	}
	return v, nil
}

// ErrorEntry is a structured, user-safe error summary attached to a phase
// result or to the run-level error log.
type ErrorEntry struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Owner     string         `json:"owner,omitempty"`
	Phase     string         `json:"phase,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// NewErrorEntry creates an entry stamped with the current UTC time.
func NewErrorEntry(code, message string, severity Severity) ErrorEntry {
	return ErrorEntry{
		Code:      code,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}
}

// Map returns the dict-shaped form of the entry used inside run state.
func (e ErrorEntry) Map() map[string]any {
	m := map[string]any{
		"code":      e.Code,
		"message":   e.Message,
		"severity":  string(e.Severity),
		"timestamp": e.Timestamp,
	}
	if e.Owner != "" {
		m["owner"] = e.Owner
	}
	if e.Phase != "" {
		m["phase"] = e.Phase
	}
	if len(e.Context) > 0 {
		m["context"] = maps.Clone(e.Context)
	}
	return m
}

// ErrorEntryFromMap parses the dict-shaped form of an entry. Timestamps may
// be time.Time values or RFC 3339 strings.
func ErrorEntryFromMap(m map[string]any) (ErrorEntry, error) {
	var e ErrorEntry
	var err error

	if e.Code, err = optionalString(m, "code"); err != nil {
		return ErrorEntry{}, err
	}
	if e.Message, err = optionalString(m, "message"); err != nil {
		return ErrorEntry{}, err
	}
	if e.Owner, err = optionalString(m, "owner"); err != nil {
		return ErrorEntry{}, err
	}
	if e.Phase, err = optionalString(m, "phase"); err != nil {
		return ErrorEntry{}, err
	}

	sev, err := optionalString(m, "severity")
	if err != nil {
		return ErrorEntry{}, err
	}
	if sev == "" {
		sev = string(SeverityError)
	}
	if e.Severity, err = ParseSeverity(sev); err != nil {
		return ErrorEntry{}, err
	}

	switch ts := m["timestamp"].(type) {
	case nil:
	case time.Time:
		e.Timestamp = ts
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return ErrorEntry{}, fmt.Errorf("%w: timestamp: %w", ErrValidation, err)
		}
		e.Timestamp = parsed
	default:
		return ErrorEntry{}, fmt.Errorf("%w: timestamp has type %T", ErrValidation, ts)
	}

	switch ctx := m["context"].(type) {
	case nil:
	case map[string]any:
		if len(ctx) > 0 {
			e.Context = maps.Clone(ctx)
		}
	default:
		return ErrorEntry{}, fmt.Errorf("%w: context has type %T", ErrValidation, ctx)
	}

	return e, nil
}

func optionalString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s has type %T", ErrValidation, key, v)
	}
	return s, nil
}
