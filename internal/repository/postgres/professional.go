package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

const (
	dialectPostgres    = "postgres"
	professionalsTable = "professionals"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var professionalColumns = []interface{}{
	"id", "name", "email", "phone",
	"province", "district", "neighborhood", "street", "street_number", "latitude", "longitude",
	"active", "verified", "specialties", "availability", "credentials",
}

// professionalRow mirrors the professionals table. Specialties, availability
// and credentials are JSONB documents.
type professionalRow struct {
	ID           uuid.UUID       `db:"id"`
	Name         string          `db:"name"`
	Email        string          `db:"email"`
	Phone        string          `db:"phone"`
	Province     string          `db:"province"`
	District     string          `db:"district"`
	Neighborhood string          `db:"neighborhood"`
	Street       string          `db:"street"`
	StreetNumber string          `db:"street_number"`
	Latitude     sql.NullFloat64 `db:"latitude"`
	Longitude    sql.NullFloat64 `db:"longitude"`
	Active       bool            `db:"active"`
	Verified     bool            `db:"verified"`
	Specialties  []byte          `db:"specialties"`
	Availability []byte          `db:"availability"`
	Credentials  []byte          `db:"credentials"`
}

func (r professionalRow) toModel() (*model.Professional, error) {
	p := &model.Professional{
		ID:     r.ID,
		Name:   r.Name,
		Email:  r.Email,
		Phone:  r.Phone,
		Active: r.Active,
		Location: model.Location{
			Province:     r.Province,
			District:     r.District,
			Neighborhood: r.Neighborhood,
			Street:       r.Street,
			StreetNumber: r.StreetNumber,
		},
		Verified: r.Verified,
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		lat, lon := r.Latitude.Float64, r.Longitude.Float64
		p.Location.Latitude, p.Location.Longitude = &lat, &lon
	}
	for _, doc := range []struct {
		raw []byte
		dst interface{}
	}{
		{r.Specialties, &p.Specialties},
		{r.Availability, &p.Availability},
		{r.Credentials, &p.Credentials},
	} {
		if len(doc.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(doc.raw, doc.dst); err != nil {
			return nil, fmt.Errorf("decode professional %s: %w", r.ID, err)
		}
	}
	return p, nil
}

type professionalDirectory struct {
	db *sqlx.DB
}

func NewProfessionalDirectory(db *sqlx.DB) repository.ProfessionalDirectory {
	return &professionalDirectory{db: db}
}

func (d *professionalDirectory) Get(ctx context.Context, id uuid.UUID) (*model.Professional, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(professionalsTable).
		Select(professionalColumns...).
		Where(goqu.C("id").Eq(id.String())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build professional query: %w", err)
	}

	var row professionalRow
	if err := d.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("professional", err)
		}
		return nil, fmt.Errorf("failed to get professional: %w", err)
	}
	return row.toModel()
}

func (d *professionalDirectory) GetCandidates(ctx context.Context, filter repository.CandidateFilter) ([]*model.Professional, error) {
	query, args, err := candidateQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build candidate query: %w", err)
	}

	var rows []professionalRow
	if err := d.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list professionals: %w", err)
	}

	out := make([]*model.Professional, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// candidateQuery narrows by the zone fields that are set. Matching is
// case-insensitive, like model.Location.MatchesZone.
func candidateQuery(f repository.CandidateFilter) (string, []interface{}, error) {
	ds := goqu.Dialect(dialectPostgres).
		From(professionalsTable).
		Select(professionalColumns...).
		Order(goqu.I("name").Asc())

	if f.OnlyActive {
		ds = ds.Where(goqu.C("active").IsTrue())
	}
	for _, zone := range [][2]string{
		{"province", f.Province},
		{"district", f.District},
		{"neighborhood", f.Neighborhood},
	} {
		if v := strings.TrimSpace(zone[1]); v != "" {
			ds = ds.Where(goqu.Func("LOWER", goqu.C(zone[0])).Eq(strings.ToLower(v)))
		}
	}
	return ds.Prepared(true).ToSQL()
}
