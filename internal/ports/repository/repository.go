package repository

import (
	"context"
	"errors"
	"time"

	"rfid.attendance/internal/core/model"
)

// Store facts. Callers translate them into domain errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateCard     = errors.New("card already registered")
	ErrOpenSessionExists = errors.New("employee already has an open session")
)

// IdentityRepository persists card to employee mappings. card_id uniqueness is
// enforced by the store itself.
type IdentityRepository interface {
	FindEmployeeByCard(ctx context.Context, cardID string) (string, error)
	InsertIdentity(ctx context.Context, cardID, employeeID string) error
}

// SessionRepository persists check-in/check-out sessions. At most one session
// per employee may have check_out unset; CreateSession returns
// ErrOpenSessionExists when that would be violated.
type SessionRepository interface {
	FindOpenSession(ctx context.Context, employeeID string) (*model.Session, error)
	CreateSession(ctx context.Context, employeeID string, checkIn, checkInRaw time.Time) (int64, error)
	CloseSession(ctx context.Context, id int64, checkOut, checkOutRaw time.Time) error
	ListSessionsByDate(ctx context.Context, date time.Time) ([]model.Session, error)
	ListSessionsByEmployee(ctx context.Context, employeeID string) ([]model.Session, error)
}

// Repository contract
type Repository interface {
	IdentityRepository
	SessionRepository
}

// DayBounds returns [start, end) of the calendar day containing date, in date's location.
func DayBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 0, 1)
}
