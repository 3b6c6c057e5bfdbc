package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"rfid.attendance/internal/core/model"
	"rfid.attendance/internal/ports/repository"
)

// AuditTrail receives one line per recorded event, independent of the session rows.
type AuditTrail interface {
	Append(ctx context.Context, event model.RecordedEvent) error
}

// EventPublisher forwards recorded events to downstream consumers.
type EventPublisher interface {
	PublishAttendance(ctx context.Context, event model.RecordedEvent) error
}

// Ledger owns session creation and closure.
type Ledger struct {
	repo      repository.SessionRepository
	audit     AuditTrail
	publisher EventPublisher
	locks     *keyedMutex
}

// NewLedger wires the ledger. publisher may be nil.
func NewLedger(repo repository.SessionRepository, audit AuditTrail, publisher EventPublisher) *Ledger {
	return &Ledger{
		repo:      repo,
		audit:     audit,
		publisher: publisher,
		locks:     newKeyedMutex(),
	}
}

// RecordEvent toggles the employee's session at the rounded time of at: an open
// session is closed, otherwise a new one is opened. State is re-read from the
// store on every call; calls for the same employee are serialized.
//
// When the ledger write succeeds but the audit line cannot be written, the
// returned event is complete and the error wraps ErrAuditTrail.
func (l *Ledger) RecordEvent(ctx context.Context, employeeID string, at time.Time) (model.RecordedEvent, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return model.RecordedEvent{}, ErrInvalidEmployee
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", employeeID))

	rounded, raw := Round(at)

	unlock := l.locks.Lock(employeeID)
	event, err := l.toggle(ctx, employeeID, rounded, raw)
	unlock()
	if err != nil {
		return model.RecordedEvent{}, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.outcome", string(event.Outcome)))
	log.Ctx(ctx).Info().
		Str("employee_id", employeeID).
		Str("outcome", string(event.Outcome)).
		Str("rounded", rounded.Format(model.ClockLayout)).
		Str("raw", raw.Format(model.ClockLayoutFull)).
		Msg("Recorded attendance event")

	if l.publisher != nil {
		if err := l.publisher.PublishAttendance(ctx, event); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("employee_id", employeeID).Msg("Failed to publish attendance event")
		}
	}

	if err := l.audit.Append(ctx, event); err != nil {
		return event, fmt.Errorf("%w: %w", ErrAuditTrail, err)
	}
	return event, nil
}

func (l *Ledger) toggle(ctx context.Context, employeeID string, rounded, raw time.Time) (model.RecordedEvent, error) {
	event := model.RecordedEvent{EmployeeID: employeeID, Rounded: rounded, Raw: raw}

	open, err := l.repo.FindOpenSession(ctx, employeeID)
	if err != nil {
		return event, fmt.Errorf("%w: find open session: %w", ErrStorage, err)
	}

	if open != nil {
		if rounded.Before(open.CheckIn) {
			return event, fmt.Errorf("%w: check-in %s, check-out %s",
				ErrInvalidSession, open.CheckIn.Format(time.RFC3339), rounded.Format(time.RFC3339))
		}
		if err := l.repo.CloseSession(ctx, open.ID, rounded, raw); err != nil {
			return event, fmt.Errorf("%w: close session %d: %w", ErrStorage, open.ID, err)
		}
		event.SessionID = open.ID
		event.Outcome = model.CheckedOut
		return event, nil
	}

	id, err := l.repo.CreateSession(ctx, employeeID, rounded, raw)
	if errors.Is(err, repository.ErrOpenSessionExists) {
		return event, fmt.Errorf("%w: %w", ErrSessionConflict, err)
	}
	if err != nil {
		return event, fmt.Errorf("%w: create session: %w", ErrStorage, err)
	}
	event.SessionID = id
	event.Outcome = model.CheckedIn
	return event, nil
}

// keyedMutex hands out one mutex per key and drops it once nobody holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
