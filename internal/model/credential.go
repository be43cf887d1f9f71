package model

import (
	"strings"
	"time"

	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

// Credential is a provincial license with a validity window.
type Credential struct {
	LicenseNumber string     `json:"license_number" db:"license_number"`
	Province      string     `json:"province" db:"province"`
	ValidFrom     time.Time  `json:"valid_from" db:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until,omitempty" db:"valid_until"`
}

func NewCredential(license, province string, from time.Time, until *time.Time) (Credential, error) {
	if strings.TrimSpace(license) == "" {
		return Credential{}, apperrors.Validation("license number is required")
	}
	if strings.TrimSpace(province) == "" {
		return Credential{}, apperrors.Validation("issuing province is required")
	}
	from = DateOnly(from)
	if until != nil {
		u := DateOnly(*until)
		if u.Before(from) {
			return Credential{}, apperrors.Validation("credential valid-until %s precedes valid-from %s",
				u.Format(dateLayout), from.Format(dateLayout))
		}
		until = &u
	}
	return Credential{
		LicenseNumber: license,
		Province:      province,
		ValidFrom:     from,
		ValidUntil:    until,
	}, nil
}

// IsValidOn compares calendar dates only, each read in its own zone; both
// bounds are inclusive.
func (c Credential) IsValidOn(date time.Time) bool {
	if compareDates(date, c.ValidFrom) < 0 {
		return false
	}
	return c.ValidUntil == nil || compareDates(date, *c.ValidUntil) <= 0
}
