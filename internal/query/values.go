package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"canvas-backend/internal/metadata"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseValue converts a rule's stored string literal to the typed value used
// for comparison. Parsing happens once at validation/compile time, not on
// every evaluation.
func ParseValue(t metadata.PropertyType, raw string) (any, error) {
	switch t {
	case metadata.TypeText:
		return raw, nil
	case metadata.TypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", raw)
		}
		return f, nil
	case metadata.TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %q", raw)
		}
		return b, nil
	case metadata.TypeDate:
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("not an ISO date: %q", raw)
		}
		return d, nil
	case metadata.TypeDateTime:
		for _, layout := range datetimeLayouts {
			if dt, err := time.Parse(layout, raw); err == nil {
				return dt, nil
			}
		}
		return nil, fmt.Errorf("not an ISO datetime: %q", raw)
	case metadata.TypeTime:
		if tv, err := time.Parse(timeLayout, raw); err == nil {
			return tv, nil
		}
		if tv, err := time.Parse("15:04", raw); err == nil {
			return tv, nil
		}
		return nil, fmt.Errorf("not a time of day: %q", raw)
	default:
		return nil, fmt.Errorf("property type %q has no value representation", t)
	}
}

// CoerceInstanceValue converts a stored instance value (as decoded from
// JSON) to the property's typed representation. Used both when validating
// record writes and when compiling rule comparisons.
func CoerceInstanceValue(t metadata.PropertyType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case metadata.TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected text, got %T", v)
		}
		return s, nil
	case metadata.TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			return ParseValue(metadata.TypeNumber, n)
		}
		return nil, fmt.Errorf("expected number, got %T", v)
	case metadata.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return ParseValue(metadata.TypeBoolean, b)
		}
		return nil, fmt.Errorf("expected boolean, got %T", v)
	case metadata.TypeDate, metadata.TypeDateTime, metadata.TypeTime:
		switch d := v.(type) {
		case time.Time:
			return d, nil
		case string:
			return ParseValue(t, d)
		}
		return nil, fmt.Errorf("expected %s string, got %T", t, v)
	default:
		return nil, fmt.Errorf("property type %q has no value representation", t)
	}
}

// IsEmptyValue reports whether an instance value counts as empty for the
// is_empty / is_not_empty operators: nil or the empty string.
func IsEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
