package model

import (
	"cmp"
	"fmt"
	"time"

	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay validates hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, apperrors.Validation("invalid time of day %02d:%02d", hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, apperrors.WrapValidation(fmt.Sprintf("invalid time of day %q", s), err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustTimeOfDay panics on malformed input. Intended for literals.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Minutes() < o.Minutes()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// On combines the time of day with the calendar date of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, t.Hour, t.Minute, 0, 0, d.Location())
}

// DateOnly truncates t to midnight, keeping its location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate parses "YYYY-MM-DD" as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.WrapValidation(fmt.Sprintf("invalid date %q", s), err)
	}
	return d, nil
}

func sameDate(a, b time.Time) bool {
	return compareDates(a, b) == 0
}

// compareDates orders the calendar dates of a and b, ignoring time of day
// and zone offset.
func compareDates(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	switch {
	case ay != by:
		return cmp.Compare(ay, by)
	case am != bm:
		return cmp.Compare(am, bm)
	default:
		return cmp.Compare(ad, bd)
	}
}

// TimeRange is a visit slot on one calendar date.
type TimeRange struct {
	Date  time.Time
	Start TimeOfDay
	End   TimeOfDay
}

// NewTimeRange requires start < end.
func NewTimeRange(date time.Time, start, end TimeOfDay) (TimeRange, error) {
	if !start.Before(end) {
		return TimeRange{}, apperrors.Validation("start time %s must be before end time %s", start, end)
	}
	return TimeRange{Date: DateOnly(date), Start: start, End: end}, nil
}

func (r TimeRange) Duration() time.Duration {
	return time.Duration(r.End.Minutes()-r.Start.Minutes()) * time.Minute
}

// Overlaps is the half-open interval test: ranges that only touch do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	if !sameDate(r.Date, o.Date) {
		return false
	}
	return r.Start.Minutes() < o.End.Minutes() && r.End.Minutes() > o.Start.Minutes()
}

// StartsAt is the absolute start instant in the date's location.
func (r TimeRange) StartsAt() time.Time {
	return r.Start.On(r.Date)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%s %s-%s", r.Date.Format(dateLayout), r.Start, r.End)
}
