// Package envconfig reads sparsegrad settings from the environment.
//
// Variables:
//   - SPARSEGRAD_DEBUG: log verbosity; "1"/"true" for debug, "2" for trace
//   - SPARSEGRAD_SQUEEZE: strip unit axes from gradients (default true)
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var returns an environment variable stripped of surrounding whitespace and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel returns the slog level selected by SPARSEGRAD_DEBUG.
// Integer values step down four levels each, so 2 selects the trace level.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("SPARSEGRAD_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// BoolWithDefault returns a reader for a boolean variable. Unparseable
// non-empty values count as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a reader for a boolean variable that defaults to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

var squeeze = BoolWithDefault("SPARSEGRAD_SQUEEZE")

// Squeeze reports whether gradients should have unit axes removed.
func Squeeze() bool {
	return squeeze(true)
}

// EnvVar describes one configuration variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every known variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"SPARSEGRAD_DEBUG":   {"SPARSEGRAD_DEBUG", LogLevel(), "Show additional debug information (e.g. SPARSEGRAD_DEBUG=1)"},
		"SPARSEGRAD_SQUEEZE": {"SPARSEGRAD_SQUEEZE", Squeeze(), "Strip unit-length axes from gradients (default true)"},
	}
}

// Values returns the current value of every variable rendered as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
