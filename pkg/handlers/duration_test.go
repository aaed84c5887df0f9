package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1d2h30m", 95400 * time.Second, true},
		{"10m", 10 * time.Minute, true},
		{"1d 2h", 26 * time.Hour, true},
		{"2H", 2 * time.Hour, true},
		{"30s", 30 * time.Second, true},
		{"1h1h", 2 * time.Hour, true},
		{"28d", MaxTimeout, true},
		{"abc", 0, false},
		{"0m", 0, false},
		{"0d0h", 0, false},
		{"", 0, false},
		{"15", 0, false},
		{"99999999999999999999d", 0, false},
		{"5000000000d", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDuration(tc.in)
		assert.Equal(t, tc.ok, ok, "ParseDuration(%q)", tc.in)
		assert.Equal(t, tc.want, got, "ParseDuration(%q)", tc.in)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1d 2h 30m", FormatDuration(95400*time.Second))
	assert.Equal(t, "10m", FormatDuration(10*time.Minute))
	assert.Equal(t, "1h 5s", FormatDuration(time.Hour+5*time.Second))
	assert.Equal(t, "0s", FormatDuration(0))
}
