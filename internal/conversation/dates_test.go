package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedExtractor resolves dates against Wednesday, October 8, 2025.
func fixedExtractor() *DateExtractor {
	return &DateExtractor{now: func() time.Time {
		return time.Date(2025, time.October, 8, 15, 30, 0, 0, time.UTC)
	}}
}

func TestDateExtractorRelativeDates(t *testing.T) {
	e := fixedExtractor()

	tests := []struct {
		name    string
		message string
		date    string
		display string
	}{
		{"today", "can we meet today?", "2025-10-08", "October 8, 2025"},
		{"tomorrow", "book a meeting tomorrow", "2025-10-09", "October 9, 2025"},
		{"next week", "sometime next week", "2025-10-15", "October 15, 2025"},
		{"next monday", "next Monday works", "2025-10-13", "October 13, 2025"},
		{"next wednesday wraps a full week", "how about next Wednesday", "2025-10-15", "October 15, 2025"},
		{"next sunday", "next sunday please", "2025-10-12", "October 12, 2025"},
		{"bare weekday", "how about Friday", "2025-10-10", "October 10, 2025"},
		{"this weekday", "this friday works", "2025-10-10", "October 10, 2025"},
		{"bare weekday with punctuation", "Friday?", "2025-10-10", "October 10, 2025"},
		{"bare weekday wraps a full week", "wednesday then", "2025-10-15", "October 15, 2025"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, ok := e.Extract(tc.message)
			require.True(t, ok)
			assert.Equal(t, tc.date, parsed.Date)
			assert.Equal(t, tc.display, parsed.Display)
		})
	}
}

func TestDateExtractorExplicitDates(t *testing.T) {
	e := fixedExtractor()

	tests := []struct {
		name    string
		message string
		date    string
	}{
		{"month day", "October 15", "2025-10-15"},
		{"lowercase month", "october 15", "2025-10-15"},
		{"ordinal suffix", "15th October", "2025-10-15"},
		{"iso", "2025-12-01", "2025-12-01"},
		{"slash with year", "10/15/2025", "2025-10-15"},
		{"short month", "Dec 1", "2025-12-01"},
		{"date inside a sentence", "how about October 15", "2025-10-15"},
		{"date inside a question", "does October 15 work for you?", "2025-10-15"},
		{"slash date inside a sentence", "maybe 10/15 then", "2025-10-15"},
		{"full date inside a sentence", "let's do October 15, 2025 please", "2025-10-15"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, ok := e.Extract(tc.message)
			require.True(t, ok)
			assert.Equal(t, tc.date, parsed.Date)
		})
	}
}

func TestDateExtractorPastDateRollsToNextYear(t *testing.T) {
	e := fixedExtractor()

	parsed, ok := e.Extract("March 3")
	require.True(t, ok)
	assert.Equal(t, "2026-03-03", parsed.Date)
	assert.Equal(t, "March 3, 2026", parsed.Display)
}

func TestDateExtractorExplicitYearStaysPut(t *testing.T) {
	e := fixedExtractor()

	// A fully qualified past date is taken as given, not bumped.
	parsed, ok := e.Extract("March 3, 2025")
	require.True(t, ok)
	assert.Equal(t, "2025-03-03", parsed.Date)
}

func TestDateExtractorNoDate(t *testing.T) {
	e := fixedExtractor()

	for _, message := range []string{"", "   ", "hello there", "I want to book a meeting"} {
		_, ok := e.Extract(message)
		assert.False(t, ok, "message %q should not parse", message)
	}
}
