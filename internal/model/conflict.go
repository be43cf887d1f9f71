package model

import "github.com/google/uuid"

// HasConflict reports whether candidate overlaps any non-cancelled
// appointment in existing. Only CANCELLED appointments are ignored, so two
// PENDING holds on one slot conflict as well. excludeID lets a reschedule
// skip the appointment being moved; pass uuid.Nil to check everything.
//
// The predicate sees only the snapshot it is given. Exclusivity under
// concurrent bookings needs a lock or constraint around check-and-insert.
func HasConflict(candidate TimeRange, existing []*Appointment, excludeID uuid.UUID) bool {
	return len(Conflicts(candidate, existing, excludeID)) > 0
}

// Conflicts returns the appointments HasConflict would trip on.
func Conflicts(candidate TimeRange, existing []*Appointment, excludeID uuid.UUID) []*Appointment {
	var out []*Appointment
	for _, other := range existing {
		if other == nil || other.IsCancelled() {
			continue
		}
		if excludeID != uuid.Nil && other.ID() == excludeID {
			continue
		}
		if candidate.Overlaps(other.Range()) {
			out = append(out, other)
		}
	}
	return out
}
