package repository

import (
	"strconv"
	"time"
)

// Values coming out of a table row are whatever the serving tier
// produced: driver-native types from SQL, string/float64 after a cache
// round-trip through JSON. These helpers coerce without panicking.

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(time.RFC3339)
	}
	return ""
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		parsed, _ := strconv.ParseInt(string(n), 10, 64)
		return parsed
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	}
	return 0
}

// timeLayouts covers the formats the sqlite and postgres drivers emit for
// timestamp columns read as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any) time.Time {
	switch ts := v.(type) {
	case time.Time:
		return ts
	case string:
		return parseTime(ts)
	case []byte:
		return parseTime(string(ts))
	}
	return time.Time{}
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
