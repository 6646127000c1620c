package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const maxContextIDLen = 128

// ParseSpanningMode accepts exactly one of the recognised mode literals.
func ParseSpanningMode(value string) (SpanningMode, error) {
	mode := SpanningMode(value)
	if !mode.Valid() {
		return "", fmt.Errorf("%w: unsupported spanning mode %q", ErrInvalidArgument, value)
	}
	return mode, nil
}

// ParseSize coerces value to a non-negative, finite number of CSS pixels.
// Numbers of any Go numeric kind, json.Number and numeric strings are
// accepted; booleans, blank strings and everything else are rejected.
func ParseSize(value any) (float64, error) {
	var size float64
	switch v := value.(type) {
	case float64:
		size = v
	case float32:
		size = float64(v)
	case int:
		size = float64(v)
	case int8:
		size = float64(v)
	case int16:
		size = float64(v)
	case int32:
		size = float64(v)
	case int64:
		size = float64(v)
	case uint:
		size = float64(v)
	case uint8:
		size = float64(v)
	case uint16:
		size = float64(v)
	case uint32:
		size = float64(v)
	case uint64:
		size = float64(v)
	case json.Number:
		parsed, err := parseSizeString(string(v))
		if err != nil {
			return 0, err
		}
		size = parsed
	case string:
		parsed, err := parseSizeString(v)
		if err != nil {
			return 0, err
		}
		size = parsed
	default:
		return 0, fmt.Errorf("%w: size %v (%T) is not a number", ErrInvalidArgument, value, value)
	}
	if math.IsNaN(size) || math.IsInf(size, 0) {
		return 0, fmt.Errorf("%w: size %v is not finite", ErrInvalidArgument, size)
	}
	if size < 0 {
		return 0, fmt.Errorf("%w: size %v is negative", ErrInvalidArgument, size)
	}
	return size, nil
}

func parseSizeString(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: size is empty", ErrInvalidArgument)
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q is not a number", ErrInvalidArgument, value)
	}
	return parsed, nil
}

// FormatSize renders a size the way it is persisted.
func FormatSize(size float64) string {
	return strconv.FormatFloat(size, 'f', -1, 64)
}

// ValidateContextID ensures a context id matches [A-Za-z0-9._-], does not start
// with a dot and is used without normalization.
func ValidateContextID(id ContextID) error {
	raw := string(id)
	if raw == "" || len(raw) > maxContextIDLen {
		return ErrInvalidContext
	}
	if strings.HasPrefix(raw, ".") {
		return ErrInvalidContext
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidContext
	}
	return nil
}
