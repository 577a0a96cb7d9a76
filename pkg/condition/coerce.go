package condition

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}

		return *t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}

		return time.Time{}, false
	case float64:
		// Unix seconds, how the JSON layer hands over numeric timestamps.
		return time.Unix(int64(t), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// ParseTime coerces a snapshot value into a time. Shared with wait-step
// date-field resolution so both read record timestamps identically.
func ParseTime(v any) (time.Time, bool) {
	return toTime(v)
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		s := strings.ToLower(strings.TrimSpace(val))

		return s == "true" || s == "yes" || s == "1" || s == "y" || s == "on"
	default:
		if n, ok := toNumber(v); ok {
			return n != 0
		}

		return false
	}
}

func lowerString(v any) string {
	if v == nil {
		return ""
	}

	return strings.ToLower(fmt.Sprintf("%v", v))
}
