package store

import (
	"strings"
	"time"
)

// TimestampLayout is the store-native timestamp encoding: fixed-width UTC
// with nanoseconds, so lexical order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// serverTimestamp is the type of ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp is a placeholder value replaced by the write time when a
// document is created or updated.
var ServerTimestamp = serverTimestamp{}

// FormatTimestamp encodes t in the store-native timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp decodes a store-native timestamp. RFC 3339 values are
// accepted as well.
func ParseTimestamp(s string) (time.Time, bool) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// IsTimestampField reports whether a field name denotes a timestamp.
func IsTimestampField(name string) bool {
	return strings.HasSuffix(name, "_at")
}

// Normalize returns a copy of fields with every timestamp field, at any
// depth, converted to time.Time. Normalize is idempotent and leaves
// non-timestamp fields untouched.
func Normalize(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(k, v)
	}
	return out
}

func normalizeValue(name string, v any) any {
	switch t := v.(type) {
	case string:
		if IsTimestampField(name) {
			if ts, ok := ParseTimestamp(t); ok {
				return ts
			}
		}
		return t
	case map[string]any:
		return Normalize(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(name, e)
		}
		return out
	default:
		return v
	}
}

// resolveTimestamps returns a copy of data ready for marshaling:
// ServerTimestamp placeholders become now and time.Time values are encoded
// in the store-native format.
func resolveTimestamps(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v any, now time.Time) any {
	switch t := v.(type) {
	case serverTimestamp:
		return FormatTimestamp(now)
	case *serverTimestamp:
		return FormatTimestamp(now)
	case time.Time:
		return FormatTimestamp(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return FormatTimestamp(*t)
	case map[string]any:
		return resolveTimestamps(t, now)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = resolveValue(e, now)
		}
		return out
	default:
		return v
	}
}
