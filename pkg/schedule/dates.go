// Package schedule answers date-range and team/tournament queries over
// the fixture snapshot.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateRange is a half-open UTC interval [From, To) covering whole
// calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// DateParseError reports a date query that matched no supported form.
type DateParseError struct {
	Query string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("could not parse date query %q", e.Query)
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

var explicitLayouts = []string{
	"2006-01-02",
	"January 2 2006",
	"January 2, 2006",
	"2 January 2006",
}

var yearlessLayouts = []string{
	"January 2",
	"2 January",
}

// ParseDateQuery resolves a natural-language date query to a calendar
// range relative to now. Supported forms: an explicit date, "today",
// "tomorrow", a weekday name, "this weekend", "this month" and "end of
// the month". Anything else fails with a DateParseError carrying the
// original query.
func ParseDateQuery(query string, now time.Time) (DateRange, error) {
	now = now.UTC()
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimPrefix(q, "on ")
	forceNext := strings.HasPrefix(q, "next ")
	q = strings.TrimPrefix(q, "next ")
	q = strings.TrimPrefix(q, "this ")

	switch q {
	case "today":
		return dayRange(now, 1), nil
	case "tomorrow":
		return dayRange(now.AddDate(0, 0, 1), 1), nil
	case "weekend":
		// "Weekend" always means the next Saturday-Sunday pair, even
		// when asked on a Saturday or Sunday.
		days := int(time.Saturday-now.Weekday()+7) % 7
		if days == 0 {
			days = 7
		}
		return dayRange(now.AddDate(0, 0, days), 2), nil
	case "month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{From: first, To: first.AddDate(0, 1, 0)}, nil
	case "end of month", "end of the month":
		next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		return DateRange{From: next.AddDate(0, 0, -5), To: next}, nil
	}

	if wd, ok := weekdays[q]; ok {
		days := int(wd-now.Weekday()+7) % 7
		// A bare weekday name includes today; "next friday" asked on a
		// Friday means the following one.
		if days == 0 && forceNext {
			days = 7
		}
		return dayRange(now.AddDate(0, 0, days), 1), nil
	}

	// Month names in explicit dates need canonical casing for the time
	// package to accept them.
	titled := cases.Title(language.English).String(q)
	for _, layout := range explicitLayouts {
		if d, err := time.Parse(layout, titled); err == nil {
			return dayRange(d, 1), nil
		}
	}
	for _, layout := range yearlessLayouts {
		if d, err := time.Parse(layout, titled); err == nil {
			return dayRange(d.AddDate(now.Year(), 0, 0), 1), nil
		}
	}

	return DateRange{}, &DateParseError{Query: query}
}

// dayRange returns the range covering n whole days starting at t's day.
func dayRange(t time.Time, n int) DateRange {
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{From: from, To: from.AddDate(0, 0, n)}
}
