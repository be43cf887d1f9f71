package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Specialty is a search key; ID is the stable one, Name is for display and
// case-insensitive lookup.
type Specialty struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Professional is owned by the professional directory; the scheduling core
// only reads it.
type Professional struct {
	ID           uuid.UUID            `json:"id" db:"id"`
	Name         string               `json:"name" db:"name"`
	Email        string               `json:"email" db:"email"`
	Phone        string               `json:"phone" db:"phone"`
	Location     Location             `json:"location" db:"-"`
	Active       bool                 `json:"active" db:"active"`
	Verified     bool                 `json:"verified" db:"verified"`
	Specialties  []Specialty          `json:"specialties" db:"-"`
	Availability []AvailabilityWindow `json:"availability" db:"-"`
	Credentials  []Credential         `json:"credentials" db:"-"`
}

// IsBookable is the booking-time eligibility predicate.
func (p *Professional) IsBookable() bool {
	return p.Active && p.Verified
}

// HasSpecialty matches by id when id is non-nil, otherwise by name.
func (p *Professional) HasSpecialty(id *int, name string) bool {
	name = strings.TrimSpace(name)
	return lo.ContainsBy(p.Specialties, func(s Specialty) bool {
		if id != nil && s.ID == *id {
			return true
		}
		return name != "" && strings.EqualFold(s.Name, name)
	})
}

// AvailableFor reports whether any availability window contains r. A
// professional without declared windows is treated as always available.
func (p *Professional) AvailableFor(r TimeRange) bool {
	if len(p.Availability) == 0 {
		return true
	}
	return lo.ContainsBy(p.Availability, func(w AvailabilityWindow) bool {
		return w.Contains(r)
	})
}

// HasValidCredential reports whether a credential issued in province is valid on date.
func (p *Professional) HasValidCredential(province string, date time.Time) bool {
	return lo.ContainsBy(p.Credentials, func(c Credential) bool {
		return strings.EqualFold(c.Province, province) && c.IsValidOn(date)
	})
}
