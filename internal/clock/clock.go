// Package clock provides timezone-aware "today" resolution and inclusive
// day-window chunking, the arithmetic every other pipeline package builds
// its date-window reasoning on top of.
package clock

import (
	"fmt"
	"time"
)

// Clock resolves the operational "today" in a fixed timezone. A fixed
// timezone (rather than the host's local zone) keeps window boundaries
// reproducible regardless of where the process runs.
type Clock struct {
	loc *time.Location
}

// New returns a Clock operating in the named IANA timezone, e.g.
// "Asia/Kolkata".
func New(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc}, nil
}

// Today returns the current local date in the clock's timezone, truncated
// to midnight.
func (c *Clock) Today() Date {
	now := time.Now().In(c.loc)
	return dateFromTime(now)
}

// Location returns the clock's timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Date is a calendar date with no time-of-day or timezone component; two
// Dates compare equal iff they denote the same day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func dateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate constructs a Date directly, normalizing overflowed components
// (e.g. month=13 rolls into the next year) the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return dateFromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a "2006-01-02" formatted date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return dateFromTime(t), nil
}

// String renders the date as "2006-01-02".
func (d Date) String() string {
	return d.toTime().Format("2006-01-02")
}

// Compact renders the date as "20060102", the token used in downloaded
// filenames.
func (d Date) Compact() string {
	return d.toTime().Format("20060102")
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.toTime().Before(o.toTime()) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.toTime().After(o.toTime()) }

// Equal reports whether d and o denote the same day.
func (d Date) Equal(o Date) bool { return d.toTime().Equal(o.toTime()) }

// AddDays returns d shifted by n days (n may be negative).
func (d Date) AddDays(n int) Date {
	return dateFromTime(d.toTime().AddDate(0, 0, n))
}

// DaysSince returns the number of days between o and d (d - o), positive
// when d is after o.
func (d Date) DaysSince(o Date) int {
	return int(d.toTime().Sub(o.toTime()).Hours() / 24)
}

// Max returns the later of two dates.
func Max(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// Window is an inclusive date range [From, To] bounding one sync
// execution for one (store, pipeline).
type Window struct {
	From Date
	To   Date
}

// Overlaps reports whether w and o share at least one day.
func (w Window) Overlaps(o Window) bool {
	return !w.To.Before(o.From) && !o.To.Before(w.From)
}

// Chunks splits [from, to] into the ordered list of inclusive windows of
// at most n days each, with window i+1 starting the day after window i
// ends and the final window ending exactly at to. from must not be after
// to; n must be >= 1.
func Chunks(from, to Date, n int) []Window {
	if n < 1 {
		n = 1
	}
	if from.After(to) {
		return nil
	}

	var windows []Window
	cursor := from
	for !cursor.After(to) {
		end := cursor.AddDays(n - 1)
		if end.After(to) {
			end = to
		}
		windows = append(windows, Window{From: cursor, To: end})
		cursor = end.AddDays(1)
	}
	return windows
}
