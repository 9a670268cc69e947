package monitor

import (
	"fmt"
	"strconv"
	"strings"
)

// threshold is a parsed "<op> <value>" condition such as "> 10" or "<= 0.5".
type threshold struct {
	op    string
	value float64
}

// parseThreshold parses a condition string. Supported operators:
// >, >=, <, <=, ==, !=.
func parseThreshold(s string) (threshold, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return threshold{}, fmt.Errorf("condition %q: want \"<op> <value>\"", s)
	}
	op, rhs := parts[0], parts[1]
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return threshold{}, fmt.Errorf("condition %q: unknown operator %q", s, op)
	}
	v, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return threshold{}, fmt.Errorf("condition %q: %w", s, err)
	}
	return threshold{op: op, value: v}, nil
}

// fires reports whether v satisfies the condition.
func (t threshold) fires(v float64) bool {
	switch t.op {
	case ">":
		return v > t.value
	case ">=":
		return v >= t.value
	case "<":
		return v < t.value
	case "<=":
		return v <= t.value
	case "==":
		return v == t.value
	case "!=":
		return v != t.value
	default:
		return false
	}
}

func (t threshold) String() string {
	return t.op + " " + strconv.FormatFloat(t.value, 'g', -1, 64)
}
