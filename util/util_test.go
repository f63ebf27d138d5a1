package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank("   "))
	assert.True(t, IsBlank("\t\n"))
	assert.False(t, IsBlank("x"))
	assert.False(t, IsBlank("  x  "))
}

func TestGetenvOrDefault(t *testing.T) {
	t.Setenv("RUNCOMMANDS_TEST_KEY", "set")
	assert.Equal(t, "set", GetenvOrDefault("RUNCOMMANDS_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetenvOrDefault("RUNCOMMANDS_TEST_UNSET_KEY", "fallback"))

	t.Setenv("RUNCOMMANDS_TEST_EMPTY", "")
	assert.Equal(t, "fallback", GetenvOrDefault("RUNCOMMANDS_TEST_EMPTY", "fallback"))
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		ellipsis  string
		want      string
	}{
		{"no limit", "hello", 0, "...", "hello"},
		{"under limit", "hello", 10, "...", "hello"},
		{"exactly at limit", "hello", 5, "...", "hello"},
		{"truncated", "hello world", 8, "...", "hello..."},
		{"limit shorter than ellipsis", "hello", 2, "...", "he"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateString(tt.input, tt.maxLength, tt.ellipsis))
		})
	}
}

func TestFormatEnv(t *testing.T) {
	assert.Nil(t, FormatEnv(nil))
	assert.Nil(t, FormatEnv(map[string]string{}))

	got := FormatEnv(map[string]string{"B": "2", "A": "1", "C": "3"})
	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, got)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", FirstNonEmpty("a", "b"))
	assert.Equal(t, "b", FirstNonEmpty("", "b"))
	assert.Equal(t, "", FirstNonEmpty("", "", ""))
	assert.Equal(t, "", FirstNonEmpty())
}
