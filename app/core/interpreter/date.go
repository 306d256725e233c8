package interpreter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the wire format for every due date the interpreter emits.
const ISODate = "2006-01-02"

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2,4}))?\b`)

// datePhrasePattern matches any date expression the resolver understands,
// used to locate a date inside a longer utterance and to strip trailing
// date text out of extracted descriptions.
var datePhrasePattern = regexp.MustCompile(
	`\b(?:today|tomorrow|yesterday` +
		`|next\s+(?:week|month|year)` +
		`|(?:next\s+)?(?:sunday|monday|tuesday|wednesday|thursday|friday|saturday)` +
		`|\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?)\b`)

// ResolveDate converts a date phrase into a calendar date anchored on a
// reference "now". Recognition precedence: literal today/tomorrow/yesterday,
// next week/month/year (fixed +7/+30/+365 day offsets, deliberately not
// calendar-aware), day-of-week names (next occurrence, rolling a full week
// when the named day is today), then numeric MM/DD[/YYYY] or MM-DD[-YYYY].
// Unparseable input returns ok=false, which callers treat as "no date
// provided", never as an error.
func ResolveDate(phrase string, now time.Time) (time.Time, bool) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return time.Time{}, false
	}
	day := truncateToDay(now)

	switch p {
	case "today", "tonight":
		return day, true
	case "tomorrow":
		return day.AddDate(0, 0, 1), true
	case "yesterday":
		return day.AddDate(0, 0, -1), true
	case "next week":
		return day.AddDate(0, 0, 7), true
	case "next month":
		return day.AddDate(0, 0, 30), true
	case "next year":
		return day.AddDate(0, 0, 365), true
	}

	name := strings.TrimSpace(strings.TrimPrefix(p, "next "))
	if wd, ok := weekdayNames[name]; ok {
		return nextWeekday(day, wd), true
	}

	if m := numericDatePattern.FindStringSubmatch(p); m != nil {
		return resolveNumericDate(m, now)
	}
	return time.Time{}, false
}

// FindDate scans free text for the first recognizable date expression and
// resolves it. The matched phrase is returned alongside the date so
// extractors can strip it from descriptions.
func FindDate(text string, now time.Time) (time.Time, string, bool) {
	lower := strings.ToLower(text)
	for _, loc := range datePhrasePattern.FindAllStringIndex(lower, -1) {
		phrase := lower[loc[0]:loc[1]]
		if d, ok := ResolveDate(phrase, now); ok {
			return d, phrase, true
		}
	}
	return time.Time{}, "", false
}

// nextWeekday returns the next occurrence of wd strictly after day: when
// the named day equals today's weekday the result rolls a full week
// forward rather than returning today.
func nextWeekday(day time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(day.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return day.AddDate(0, 0, delta)
}

func resolveNumericDate(m []string, now time.Time) (time.Time, bool) {
	month, err := strconv.Atoi(m[1])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	dayNum, err := strconv.Atoi(m[2])
	if err != nil || dayNum < 1 || dayNum > 31 {
		return time.Time{}, false
	}
	year := now.Year()
	if m[3] != "" {
		year, err = strconv.Atoi(m[3])
		if err != nil {
			return time.Time{}, false
		}
		// two-digit years expand to 20YY
		if year < 100 {
			year += 2000
		}
	}
	d := time.Date(year, time.Month(month), dayNum, 0, 0, 0, 0, now.Location())
	if d.Month() != time.Month(month) || d.Day() != dayNum {
		return time.Time{}, false
	}
	return d, true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatDate renders a resolved date in the interpreter's ISO format.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ISODate)
}

// ParseISODate is the inverse of FormatDate, for collaborators that hand
// stored dates back to the interpreter layer.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse(ISODate, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
