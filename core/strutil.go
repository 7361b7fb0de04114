package core

import (
	"strconv"
	"strings"
)

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	return strconv.Itoa(n)
}

// ftoa formats a float with the fewest digits that round-trip
func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func toUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func toLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// valueToString converts a log argument to its printed form
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case float64:
		return ftoa(val)
	case bool:
		if val {
			return "True"
		}
		return "False"
	case error:
		return val.Error()
	case interface{ String() string }:
		return val.String()
	case nil:
		return "None"
	default:
		return "?"
	}
}

// sprint joins args with single spaces, like a print statement
func sprint(args ...interface{}) string {
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(valueToString(a))
	}
	return b.String()
}
