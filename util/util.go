// Package util holds small helpers shared across the runner packages.
package util

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// IsBlank reports whether s is empty or contains only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// GetenvOrDefault returns the value of the environment variable key,
// or defaultValue if it is unset or empty.
func GetenvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// TruncateString shortens s to maxLength runes, appending ellipsis when
// truncation occurred. maxLength <= 0 means no truncation.
func TruncateString(s string, maxLength int, ellipsis string) string {
	if maxLength <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= len([]rune(ellipsis)) {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-len([]rune(ellipsis))]) + ellipsis
}

// FormatEnv converts an override map into the KEY=VALUE slice os/exec
// expects. Keys are sorted so the child environment is deterministic.
func FormatEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	formatted := make([]string, 0, len(keys))
	for _, k := range keys {
		formatted = append(formatted, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return formatted
}

// FirstNonEmpty returns the first string in strs that is not empty.
func FirstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
