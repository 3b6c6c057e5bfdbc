package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"rfid.attendance/internal/core/model"
	"rfid.attendance/internal/ports/repository"
)

// IdentityRegistry is the only writer of identities.
type IdentityRegistry struct {
	repo  repository.IdentityRepository
	newID func() string
}

// NewIdentityRegistry creates a registry issuing random UUIDv4 employee ids.
func NewIdentityRegistry(repo repository.IdentityRepository) *IdentityRegistry {
	return &IdentityRegistry{repo: repo, newID: uuid.NewString}
}

// ResolveOrCreate returns the employee bound to cardID, enrolling the card on first
// sight. Losing an insert race to another writer resolves to the winner's mapping.
func (r *IdentityRegistry) ResolveOrCreate(ctx context.Context, cardID string) (model.Resolution, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return model.Resolution{}, ErrInvalidCard
	}

	employeeID, err := r.repo.FindEmployeeByCard(ctx, cardID)
	if err == nil {
		return model.Resolution{EmployeeID: employeeID, CardID: cardID}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Resolution{}, fmt.Errorf("%w: find card: %w", ErrStorage, err)
	}

	employeeID = r.newID()
	err = r.repo.InsertIdentity(ctx, cardID, employeeID)
	if errors.Is(err, repository.ErrDuplicateCard) {
		log.Ctx(ctx).Debug().Str("card_id", cardID).Msg("Card registered concurrently, re-reading mapping")
		existing, err := r.repo.FindEmployeeByCard(ctx, cardID)
		if err != nil {
			return model.Resolution{}, fmt.Errorf("%w: re-read card: %w", ErrStorage, err)
		}
		return model.Resolution{EmployeeID: existing, CardID: cardID}, nil
	}
	if err != nil {
		return model.Resolution{}, fmt.Errorf("%w: insert card: %w", ErrStorage, err)
	}

	log.Ctx(ctx).Info().Str("card_id", cardID).Str("employee_id", employeeID).Msg("Registered new card")
	return model.Resolution{EmployeeID: employeeID, CardID: cardID, Created: true}, nil
}
