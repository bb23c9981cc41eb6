package parser

import (
	"strconv"
	"strings"
)

// Порядок важен: "ms", "us" и "ns" проверяются раньше "s".
var durationUnits = []struct {
	suffix string
	millis float64
}{
	{"ns", 1e-6},
	{"us", 1e-3},
	{"ms", 1},
	{"s", 1000},
	{"m", 60 * 1000},
	{"h", 60 * 60 * 1000},
	{"d", 24 * 60 * 60 * 1000},
}

// ParseDuration переводит строку длительности Trino ("123.45ms", "1.5s", "2m")
// в миллисекунды. Дробная часть отбрасывается. nil, если строка пустая
// или не разбирается.
func ParseDuration(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, u := range durationUnits {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
		v, err := strconv.ParseFloat(num, 64)
		if err != nil || v < 0 {
			return nil
		}
		ms := int64(v*u.millis + 1e-6)
		return &ms
	}
	return nil
}

// EventType выводит тип события из состояния запроса.
func EventType(state string) string {
	switch state {
	case "":
		return "UNKNOWN"
	case "QUEUED", "PLANNING", "STARTING", "RUNNING":
		return "CREATED"
	case "FINISHED", "FAILED", "CANCELED":
		return "COMPLETED"
	default:
		return state
	}
}
