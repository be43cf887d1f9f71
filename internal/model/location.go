package model

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

const earthRadiusKm = 6371.0

var validate = validator.New(validator.WithRequiredStructEnabled())

// Location is the visit address. It is a value: copy it, never mutate it.
type Location struct {
	Province     string   `json:"province" db:"province" validate:"required,max=100"`
	District     string   `json:"district" db:"district" validate:"max=100"`
	Neighborhood string   `json:"neighborhood" db:"neighborhood" validate:"max=100"`
	Street       string   `json:"street" db:"street" validate:"max=200"`
	StreetNumber string   `json:"street_number" db:"street_number" validate:"max=20"`
	Latitude     *float64 `json:"latitude,omitempty" db:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude    *float64 `json:"longitude,omitempty" db:"longitude" validate:"omitempty,min=-180,max=180"`
}

// NewLocation validates and returns a Location.
func NewLocation(loc Location) (Location, error) {
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

func (l Location) Validate() error {
	if err := validate.Struct(l); err != nil {
		return apperrors.WrapValidation("invalid location", err)
	}
	if (l.Latitude == nil) != (l.Longitude == nil) {
		return apperrors.Validation("invalid location: latitude and longitude must be given together")
	}
	return nil
}

func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Equal compares by value, coordinates included.
func (l Location) Equal(o Location) bool {
	return l.Province == o.Province &&
		l.District == o.District &&
		l.Neighborhood == o.Neighborhood &&
		l.Street == o.Street &&
		l.StreetNumber == o.StreetNumber &&
		floatPtrEqual(l.Latitude, o.Latitude) &&
		floatPtrEqual(l.Longitude, o.Longitude)
}

// MatchesZone reports whether l lies in the given zone. Empty zone fields are
// not checked. Comparison ignores case and surrounding spaces.
func (l Location) MatchesZone(province, district, neighborhood string) bool {
	return fieldMatches(l.Province, province) &&
		fieldMatches(l.District, district) &&
		fieldMatches(l.Neighborhood, neighborhood)
}

// DistanceKm returns the great-circle distance to o. ok is false when either
// side lacks coordinates.
func (l Location) DistanceKm(o Location) (km float64, ok bool) {
	if !l.HasCoordinates() || !o.HasCoordinates() {
		return 0, false
	}
	lat1, lon1 := toRad(*l.Latitude), toRad(*l.Longitude)
	lat2, lon2 := toRad(*o.Latitude), toRad(*o.Longitude)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a))), true
}

func fieldMatches(have, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(have), want)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
