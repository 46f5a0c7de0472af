package domain

import (
	"fmt"
	"time"
)

// Date is a calendar day in the wallet's reporting time zone.
// The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of a unix-seconds timestamp in loc.
func DateOf(ts int64, loc *time.Location) Date {
	t := time.Unix(ts, 0).In(loc)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateFromTime returns the calendar day of t in its own location.
func DateFromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Unix returns the unix-seconds timestamp of midnight in loc.
func (d Date) Unix(loc *time.Location) int64 {
	return d.Time(loc).Unix()
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateFromTime(t), nil
}

// Before reports whether d is chronologically before o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d is chronologically after o.
func (d Date) After(o Date) bool {
	return o.Before(d)
}

// AddDays returns the date n days after d (n may be negative).
// Normalization is delegated to time.Date.
func (d Date) AddDays(n int) Date {
	return DateFromTime(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// ISOWeek returns the ISO-8601 week year and week number of the date.
// Week 1 is the week containing the year's first Thursday; weeks run
// Monday through Sunday.
func (d Date) ISOWeek() (year, week int) {
	return d.Time(time.UTC).ISOWeek()
}
