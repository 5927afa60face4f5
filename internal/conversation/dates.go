package conversation

import (
	"regexp"
	"strings"
	"time"
)

const (
	isoDateLayout     = "2006-01-02"
	displayDateLayout = "January 2, 2006"
)

var ordinalSuffixRe = regexp.MustCompile(`(\d+)(st|nd|rd|th)`)

// ParsedDate is a user-supplied meeting date resolved to a calendar day.
type ParsedDate struct {
	Date    string // YYYY-MM-DD
	Display string // e.g. "October 14, 2025"
}

// DateExtractor resolves natural language dates ("tomorrow", "Friday",
// "how about October 15") against the current day. Dates without a year
// resolve to the next occurrence, never the past.
type DateExtractor struct {
	now func() time.Time
}

func NewDateExtractor() *DateExtractor {
	return &DateExtractor{now: time.Now}
}

// Candidate layouts for explicit dates, most specific first. Layouts use
// unpadded numbers so both "10/5/2025" and "10/05/2025" parse.
var dateLayouts = []string{
	"2006-01-02",
	"January 2",
	"Jan 2",
	"2 January",
	"2 Jan",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January, 2006",
	"2 Jan, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"1/2/2006",
	"1/2",
	"2/1/2006",
	"2/1",
}

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// Extract resolves a date mention in message. It returns false when no date
// could be recognized.
func (e *DateExtractor) Extract(message string) (ParsedDate, bool) {
	cleaned := strings.TrimSpace(ordinalSuffixRe.ReplaceAllString(message, "$1"))
	if cleaned == "" {
		return ParsedDate{}, false
	}
	lowered := strings.ToLower(cleaned)

	today := e.today()

	if strings.Contains(lowered, "today") {
		return e.resolved(today), true
	}
	if strings.Contains(lowered, "tomorrow") {
		return e.resolved(today.AddDate(0, 0, 1)), true
	}
	if strings.Contains(lowered, "next week") {
		return e.resolved(today.AddDate(0, 0, 7)), true
	}
	// A weekday name on its own ("Friday", "this friday", "next Friday")
	// always means the upcoming one.
	for _, word := range strings.Fields(lowered) {
		if weekday, ok := weekdays[strings.Trim(word, "?!.,")]; ok {
			daysAhead := int(weekday - today.Weekday())
			if daysAhead <= 0 {
				daysAhead += 7
			}
			return e.resolved(today.AddDate(0, 0, daysAhead)), true
		}
	}

	// Month names in the candidate layouts are case sensitive, so
	// normalize "october 15" to "October 15" before trying them. The date
	// can sit anywhere in the message ("how about October 15?"), so every
	// run of up to three words is a candidate, longest runs first.
	words := strings.Fields(capitalizeWords(lowered))
	for i := range words {
		words[i] = strings.TrimRight(words[i], "?!.")
	}
	for size := 3; size >= 1; size-- {
		for start := 0; start+size <= len(words); start++ {
			phrase := strings.Join(words[start:start+size], " ")
			if day, ok := parseExplicitDate(phrase, today); ok {
				return e.resolved(day), true
			}
		}
	}

	return ParsedDate{}, false
}

func parseExplicitDate(phrase string, today time.Time) (time.Time, bool) {
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, phrase)
		if err != nil {
			continue
		}

		candidate := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		if candidate.Year() == 0 {
			candidate = candidate.AddDate(today.Year(), 0, 0)
		}
		// A year-less date already behind us means the next occurrence.
		if candidate.Before(today) && !strings.Contains(layout, "2006") {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate, true
	}
	return time.Time{}, false
}

func (e *DateExtractor) today() time.Time {
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (e *DateExtractor) resolved(day time.Time) ParsedDate {
	return ParsedDate{
		Date:    day.Format(isoDateLayout),
		Display: day.Format(displayDateLayout),
	}
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
