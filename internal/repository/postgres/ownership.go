package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/homevisit-api/internal/repository"
)

type ownershipPolicy struct {
	db *sqlx.DB
}

// NewOwnershipPolicy lets a patient act for themselves, and a delegate (a
// relative or carer registered in patient_delegates) act for the patient.
func NewOwnershipPolicy(db *sqlx.DB) repository.OwnershipPolicy {
	return &ownershipPolicy{db: db}
}

func (p *ownershipPolicy) Verify(ctx context.Context, patientID, requesterID uuid.UUID) (bool, error) {
	if patientID == uuid.Nil || requesterID == uuid.Nil {
		return false, nil
	}
	if patientID == requesterID {
		return true, nil
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM patient_delegates
			WHERE patient_id = $1 AND delegate_id = $2 AND revoked_at IS NULL
		)
	`
	var ok bool
	if err := p.db.GetContext(ctx, &ok, query, patientID, requesterID); err != nil {
		return false, fmt.Errorf("failed to verify ownership: %w", err)
	}
	return ok, nil
}

type contactResolver struct {
	db *sqlx.DB
}

func NewContactResolver(db *sqlx.DB) repository.ContactResolver {
	return &contactResolver{db: db}
}

func (c *contactResolver) EmailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `
		SELECT email FROM patients WHERE id = $1
		UNION ALL
		SELECT email FROM professionals WHERE id = $1
		LIMIT 1
	`
	var email string
	if err := c.db.GetContext(ctx, &email, query, userID); err != nil {
		return "", fmt.Errorf("failed to resolve contact for %s: %w", userID, err)
	}
	return email, nil
}
