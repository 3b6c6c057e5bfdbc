package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"rfid.attendance/internal/core/model"
)

const pgUniqueViolation = "23505"

// PostgresRepository is the concrete implementation for a PostgreSQL database.
type PostgresRepository struct {
	DB  *sql.DB
	loc *time.Location
}

// NewPostgresRepository create new instance. Timestamps read back are converted into loc.
func NewPostgresRepository(db *sql.DB, loc *time.Location) *PostgresRepository {
	if loc == nil {
		loc = time.Local
	}
	return &PostgresRepository{DB: db, loc: loc}
}

// FindEmployeeByCard returns the employee bound to cardID, or ErrNotFound.
func (r *PostgresRepository) FindEmployeeByCard(ctx context.Context, cardID string) (string, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.cardId", cardID))

	var employeeID string
	err := r.DB.QueryRowContext(ctx, `SELECT employee_id FROM identities WHERE card_id = $1`, cardID).Scan(&employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return employeeID, nil
}

// InsertIdentity stores a new card. A concurrent insert of the same card yields ErrDuplicateCard.
func (r *PostgresRepository) InsertIdentity(ctx context.Context, cardID, employeeID string) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", employeeID))

	_, err := r.DB.ExecContext(ctx, `INSERT INTO identities (card_id, employee_id) VALUES ($1, $2)`, cardID, employeeID)
	if isUniqueViolation(err, constraintCardUnique) {
		return fmt.Errorf("%w: %s", ErrDuplicateCard, cardID)
	}
	return err
}

// FindOpenSession get the open session for an employee, nil when there is none.
func (r *PostgresRepository) FindOpenSession(ctx context.Context, employeeID string) (*model.Session, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", employeeID))

	query := `SELECT id, employee_id, check_in, check_in_raw, check_out, check_out_raw
              FROM sessions
              WHERE employee_id = $1 AND check_out IS NULL
              ORDER BY id DESC
              LIMIT 1`

	s, err := r.scanSession(r.DB.QueryRowContext(ctx, query, employeeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateSession opens a session. The partial unique index rejects a second open session.
func (r *PostgresRepository) CreateSession(ctx context.Context, employeeID string, checkIn, checkInRaw time.Time) (int64, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", employeeID))

	var id int64
	query := `INSERT INTO sessions (employee_id, check_in, check_in_raw)
              VALUES ($1, $2, $3) RETURNING id`

	err := r.DB.QueryRowContext(ctx, query, employeeID, checkIn, checkInRaw).Scan(&id)
	if isUniqueViolation(err, constraintOneOpenSess) {
		return 0, fmt.Errorf("%w: %s", ErrOpenSessionExists, employeeID)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CloseSession sets check_out on a still-open session in one statement.
func (r *PostgresRepository) CloseSession(ctx context.Context, id int64, checkOut, checkOutRaw time.Time) error {
	query := `UPDATE sessions
              SET check_out = $1,
                  check_out_raw = $2
              WHERE id = $3 AND check_out IS NULL`

	res, err := r.DB.ExecContext(ctx, query, checkOut, checkOutRaw, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: open session %d", ErrNotFound, id)
	}
	return nil
}

// ListSessionsByDate returns the sessions checked in on date's calendar day, in row order.
func (r *PostgresRepository) ListSessionsByDate(ctx context.Context, date time.Time) ([]model.Session, error) {
	start, end := DayBounds(date.In(r.loc))

	query := `SELECT id, employee_id, check_in, check_in_raw, check_out, check_out_raw
              FROM sessions
              WHERE check_in >= $1 AND check_in < $2
              ORDER BY id`
	return r.querySessions(ctx, query, start, end)
}

// ListSessionsByEmployee returns every session of an employee, in row order.
func (r *PostgresRepository) ListSessionsByEmployee(ctx context.Context, employeeID string) ([]model.Session, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", employeeID))

	query := `SELECT id, employee_id, check_in, check_in_raw, check_out, check_out_raw
              FROM sessions
              WHERE employee_id = $1
              ORDER BY id`
	return r.querySessions(ctx, query, employeeID)
}

func (r *PostgresRepository) querySessions(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanSession(row rowScanner) (*model.Session, error) {
	var (
		s                     model.Session
		checkOut, checkOutRaw sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.EmployeeID, &s.CheckIn, &s.CheckInRaw, &checkOut, &checkOutRaw); err != nil {
		return nil, err
	}

	s.CheckIn = s.CheckIn.In(r.loc)
	s.CheckInRaw = s.CheckInRaw.In(r.loc)
	if checkOut.Valid {
		t := checkOut.Time.In(r.loc)
		s.CheckOut = &t
	}
	if checkOutRaw.Valid {
		t := checkOutRaw.Time.In(r.loc)
		s.CheckOutRaw = &t
	}
	return &s, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}
