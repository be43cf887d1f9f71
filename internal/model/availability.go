package model

import (
	"time"

	"github.com/samber/lo"

	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

// AvailabilityWindow is a recurring weekly window in which a professional
// accepts visits. Weekdays use time.Weekday numbering (Sunday = 0) here and in
// every date-to-weekday conversion.
type AvailabilityWindow struct {
	Weekdays []time.Weekday `json:"weekdays"`
	Start    TimeOfDay      `json:"start"`
	End      TimeOfDay      `json:"end"`
}

func NewAvailabilityWindow(weekdays []time.Weekday, start, end TimeOfDay) (AvailabilityWindow, error) {
	if !start.Before(end) {
		return AvailabilityWindow{}, apperrors.Validation("availability start %s must be before end %s", start, end)
	}
	if len(weekdays) == 0 {
		return AvailabilityWindow{}, apperrors.Validation("availability window needs at least one weekday")
	}
	for _, d := range weekdays {
		if d < time.Sunday || d > time.Saturday {
			return AvailabilityWindow{}, apperrors.Validation("invalid weekday %d", int(d))
		}
	}
	return AvailabilityWindow{
		Weekdays: lo.Uniq(weekdays),
		Start:    start,
		End:      end,
	}, nil
}

// CoversDay reports whether the window applies on date's weekday.
func (w AvailabilityWindow) CoversDay(date time.Time) bool {
	return lo.Contains(w.Weekdays, date.Weekday())
}

// Contains reports whether the whole range fits inside the window.
func (w AvailabilityWindow) Contains(r TimeRange) bool {
	if !w.CoversDay(r.Date) {
		return false
	}
	return w.Start.Minutes() <= r.Start.Minutes() && r.End.Minutes() <= w.End.Minutes()
}
