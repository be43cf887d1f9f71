package search

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/jwalitptl/homevisit-api/internal/model"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

// Filter describes a professional search. Zone fields narrow from province
// down to neighborhood; a finer field requires the coarser one.
type Filter struct {
	Province      string
	District      string
	Neighborhood  string
	SpecialtyID   *int
	SpecialtyName string
	// Reference orders results by distance when it has coordinates.
	Reference *model.Location
}

func (f Filter) HasZone() bool {
	return strings.TrimSpace(f.Province) != "" ||
		strings.TrimSpace(f.District) != "" ||
		strings.TrimSpace(f.Neighborhood) != ""
}

func (f Filter) HasSpecialty() bool {
	return f.SpecialtyID != nil || strings.TrimSpace(f.SpecialtyName) != ""
}

func (f Filter) validateZone() error {
	province := strings.TrimSpace(f.Province)
	district := strings.TrimSpace(f.District)
	neighborhood := strings.TrimSpace(f.Neighborhood)

	if district != "" && province == "" {
		return apperrors.Validation("district filter requires a province")
	}
	if neighborhood != "" && district == "" {
		return apperrors.Validation("neighborhood filter requires a district")
	}
	return nil
}

func (f Filter) validateSpecialty() error {
	if !f.HasSpecialty() {
		return apperrors.Validation("specialty search needs a specialty id or name")
	}
	return nil
}

// Strategy filters a catalog of already loaded professionals. Strategies
// never reorder the catalog except for distance ordering, and never mutate it.
type Strategy interface {
	Search(catalog []*model.Professional, f Filter) ([]*model.Professional, error)
}

// ByZone keeps professionals located in the requested zone.
type ByZone struct{}

func (ByZone) Search(catalog []*model.Professional, f Filter) ([]*model.Professional, error) {
	if err := f.validateZone(); err != nil {
		return nil, err
	}
	out := lo.Filter(catalog, func(p *model.Professional, _ int) bool {
		return p != nil && p.Location.MatchesZone(f.Province, f.District, f.Neighborhood)
	})
	return byDistance(out, f.Reference), nil
}

// BySpecialty keeps professionals offering the requested specialty.
type BySpecialty struct{}

func (BySpecialty) Search(catalog []*model.Professional, f Filter) ([]*model.Professional, error) {
	if err := f.validateSpecialty(); err != nil {
		return nil, err
	}
	return lo.Filter(catalog, func(p *model.Professional, _ int) bool {
		return p != nil && p.HasSpecialty(f.SpecialtyID, f.SpecialtyName)
	}), nil
}

// Combined narrows by zone first, then by specialty, then orders by distance.
type Combined struct{}

func (Combined) Search(catalog []*model.Professional, f Filter) ([]*model.Professional, error) {
	if err := f.validateSpecialty(); err != nil {
		return nil, err
	}
	inZone, err := ByZone{}.Search(catalog, Filter{
		Province:     f.Province,
		District:     f.District,
		Neighborhood: f.Neighborhood,
	})
	if err != nil {
		return nil, err
	}
	matched, err := BySpecialty{}.Search(inZone, f)
	if err != nil {
		return nil, err
	}
	return byDistance(matched, f.Reference), nil
}

// ForFilter picks a strategy by the shape of f and validates f up front.
func ForFilter(f Filter) (Strategy, error) {
	if err := f.validateZone(); err != nil {
		return nil, err
	}
	switch {
	case f.HasZone() && f.HasSpecialty():
		return Combined{}, nil
	case f.HasSpecialty():
		return BySpecialty{}, nil
	default:
		return ByZone{}, nil
	}
}

// byDistance stable-sorts by distance to ref. Professionals without a
// computable distance keep their relative order after the others.
func byDistance(list []*model.Professional, ref *model.Location) []*model.Professional {
	if ref == nil || !ref.HasCoordinates() || len(list) < 2 {
		return list
	}

	type ranked struct {
		p    *model.Professional
		km   float64
		near bool
	}
	items := lo.Map(list, func(p *model.Professional, _ int) ranked {
		km, ok := ref.DistanceKm(p.Location)
		return ranked{p: p, km: km, near: ok}
	})
	slices.SortStableFunc(items, func(a, b ranked) int {
		switch {
		case a.near && !b.near:
			return -1
		case !a.near && b.near:
			return 1
		case !a.near && !b.near:
			return 0
		case a.km < b.km:
			return -1
		case a.km > b.km:
			return 1
		}
		return 0
	})
	return lo.Map(items, func(r ranked, _ int) *model.Professional { return r.p })
}
