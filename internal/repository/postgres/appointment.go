package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

const appointmentColumns = `
	id, patient_id, professional_id, date,
	to_char(start_time, 'HH24:MI') AS start_time,
	to_char(end_time, 'HH24:MI') AS end_time,
	province, district, neighborhood, street, street_number, latitude, longitude,
	status, reason, notes, created_at, updated_at`

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentStore {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, professional_id, date, start_time, end_time,
			province, district, neighborhood, street, street_number, latitude, longitude,
			status, reason, notes, created_at, updated_at
		) VALUES (
			:id, :patient_id, :professional_id, :date, :start_time, :end_time,
			:province, :district, :neighborhood, :street, :street_number, :latitude, :longitude,
			:status, :reason, :notes, :created_at, :updated_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, appointment.ToRecord()); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var rec model.AppointmentRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return model.Restore(rec)
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET date = :date, start_time = :start_time, end_time = :end_time,
			status = :status, notes = :notes, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, appointment.ToRecord())
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) ListForProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE professional_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, start_time`

	var recs []model.AppointmentRecord
	if err := r.db.SelectContext(ctx, &recs, query, professionalID, model.DateOnly(from), model.DateOnly(to)); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return restoreAll(recs)
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []interface{}

	if filters != nil {
		if filters.ProfessionalID != uuid.Nil {
			args = append(args, filters.ProfessionalID)
			query += fmt.Sprintf(" AND professional_id = $%d", len(args))
		}
		if filters.PatientID != uuid.Nil {
			args = append(args, filters.PatientID)
			query += fmt.Sprintf(" AND patient_id = $%d", len(args))
		}
		if filters.Status != "" {
			args = append(args, filters.Status)
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
		if !filters.From.IsZero() {
			args = append(args, model.DateOnly(filters.From))
			query += fmt.Sprintf(" AND date >= $%d", len(args))
		}
		if !filters.To.IsZero() {
			args = append(args, model.DateOnly(filters.To))
			query += fmt.Sprintf(" AND date <= $%d", len(args))
		}
	}
	query += " ORDER BY date, start_time"

	var recs []model.AppointmentRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return restoreAll(recs)
}

func restoreAll(recs []model.AppointmentRecord) ([]*model.Appointment, error) {
	out := make([]*model.Appointment, 0, len(recs))
	for _, rec := range recs {
		a, err := model.Restore(rec)
		if err != nil {
			return nil, fmt.Errorf("corrupt appointment %s: %w", rec.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}
