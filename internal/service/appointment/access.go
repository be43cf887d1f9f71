package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/pkg/auth"
	apperrors "github.com/jwalitptl/homevisit-api/pkg/errors"
)

// parties says which side of the visit may perform an action. Admins may
// always act.
type parties int

const (
	professionalOnly parties = iota + 1
	eitherParty
)

func requesterFrom(ctx context.Context) (*auth.Requester, error) {
	r, ok := auth.RequesterFromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized(fmt.Errorf("no requester in context"))
	}
	return r, nil
}

func (s *Service) authorize(ctx context.Context, r *auth.Requester, a *model.Appointment, who parties) error {
	switch r.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleProfessional:
		if r.ID == a.ProfessionalID() {
			return nil
		}
	case auth.RolePatient:
		if who == eitherParty {
			return s.verifyOwnership(ctx, a.PatientID(), r.ID)
		}
	}
	return apperrors.Forbidden("not allowed to act on this appointment")
}

func (s *Service) verifyOwnership(ctx context.Context, patientID, requesterID uuid.UUID) error {
	ok, err := s.ownership.Verify(ctx, patientID, requesterID)
	if err != nil {
		return fmt.Errorf("failed to verify ownership: %w", err)
	}
	if !ok {
		return apperrors.Forbidden("patient does not belong to the requester")
	}
	return nil
}
