package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rfid.attendance/internal/core/model"
)

// MemoryRepository keeps identities and sessions in process memory. It enforces
// the same uniqueness rules as the Postgres schema and is meant for local runs
// without a database and for tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	identities map[string]string
	sessions   []model.Session
	nextID     int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{identities: make(map[string]string)}
}

func (r *MemoryRepository) FindEmployeeByCard(_ context.Context, cardID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	employeeID, ok := r.identities[cardID]
	if !ok {
		return "", ErrNotFound
	}
	return employeeID, nil
}

func (r *MemoryRepository) InsertIdentity(_ context.Context, cardID, employeeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.identities[cardID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCard, cardID)
	}
	r.identities[cardID] = employeeID
	return nil
}

func (r *MemoryRepository) FindOpenSession(_ context.Context, employeeID string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.openIndex(employeeID); i >= 0 {
		s := r.sessions[i]
		return &s, nil
	}
	return nil, nil
}

func (r *MemoryRepository) CreateSession(_ context.Context, employeeID string, checkIn, checkInRaw time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.openIndex(employeeID) >= 0 {
		return 0, fmt.Errorf("%w: %s", ErrOpenSessionExists, employeeID)
	}
	r.nextID++
	r.sessions = append(r.sessions, model.Session{
		ID:         r.nextID,
		EmployeeID: employeeID,
		CheckIn:    checkIn,
		CheckInRaw: checkInRaw,
	})
	return r.nextID, nil
}

func (r *MemoryRepository) CloseSession(_ context.Context, id int64, checkOut, checkOutRaw time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.sessions {
		s := &r.sessions[i]
		if s.ID != id || !s.Open() {
			continue
		}
		out, raw := checkOut, checkOutRaw
		s.CheckOut = &out
		s.CheckOutRaw = &raw
		return nil
	}
	return fmt.Errorf("%w: open session %d", ErrNotFound, id)
}

func (r *MemoryRepository) ListSessionsByDate(_ context.Context, date time.Time) ([]model.Session, error) {
	start, end := DayBounds(date)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Session
	for _, s := range r.sessions {
		if !s.CheckIn.Before(start) && s.CheckIn.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListSessionsByEmployee(_ context.Context, employeeID string) ([]model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Session
	for _, s := range r.sessions {
		if s.EmployeeID == employeeID {
			out = append(out, s)
		}
	}
	return out, nil
}

// OpenSessions counts open sessions for an employee.
func (r *MemoryRepository) OpenSessions(employeeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.EmployeeID == employeeID && s.Open() {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) openIndex(employeeID string) int {
	for i := len(r.sessions) - 1; i >= 0; i-- {
		if r.sessions[i].EmployeeID == employeeID && r.sessions[i].Open() {
			return i
		}
	}
	return -1
}
