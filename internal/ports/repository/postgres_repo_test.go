package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionColumns = []string{"id", "employee_id", "check_in", "check_in_raw", "check_out", "check_out_raw"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db, time.UTC), mock
}

func TestFindEmployeeByCard(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT employee_id FROM identities WHERE card_id").
		WithArgs("AA11").
		WillReturnRows(sqlmock.NewRows([]string{"employee_id"}).AddRow("emp-1"))

	employeeID, err := repo.FindEmployeeByCard(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", employeeID)

	mock.ExpectQuery("SELECT employee_id FROM identities WHERE card_id").
		WithArgs("BB22").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindEmployeeByCard(ctx, "BB22")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIdentity(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities (card_id, employee_id)")).
		WithArgs("AA11", "emp-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.InsertIdentity(ctx, "AA11", "emp-1"))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities (card_id, employee_id)")).
		WithArgs("AA11", "emp-2").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraintCardUnique})
	assert.ErrorIs(t, repo.InsertIdentity(ctx, "AA11", "emp-2"), ErrDuplicateCard)

	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identities (card_id, employee_id)")).
		WithArgs("CC33", "emp-3").
		WillReturnError(boom)
	err := repo.InsertIdentity(ctx, "CC33", "emp-3")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicateCard)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenSession(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	in := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	raw := time.Date(2026, 10, 14, 9, 7, 45, 0, time.UTC)

	mock.ExpectQuery("FROM sessions\\s+WHERE employee_id = \\S+ AND check_out IS NULL").
		WithArgs("emp-1").
		WillReturnRows(sqlmock.NewRows(sessionColumns).AddRow(int64(7), "emp-1", in, raw, nil, nil))

	s, err := repo.FindOpenSession(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(7), s.ID)
	assert.True(t, s.Open())
	assert.True(t, in.Equal(s.CheckIn))
	assert.True(t, raw.Equal(s.CheckInRaw))

	mock.ExpectQuery("FROM sessions\\s+WHERE employee_id = \\S+ AND check_out IS NULL").
		WithArgs("emp-2").
		WillReturnRows(sqlmock.NewRows(sessionColumns))

	s, err = repo.FindOpenSession(ctx, "emp-2")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSession(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	in := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	raw := in.Add(7 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sessions (employee_id, check_in, check_in_raw)")).
		WithArgs("emp-1", in, raw).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := repo.CreateSession(ctx, "emp-1", in, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sessions (employee_id, check_in, check_in_raw)")).
		WithArgs("emp-1", in, raw).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraintOneOpenSess})

	_, err = repo.CreateSession(ctx, "emp-1", in, raw)
	assert.ErrorIs(t, err, ErrOpenSessionExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseSession(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	out := time.Date(2026, 10, 14, 17, 15, 0, 0, time.UTC)
	raw := out.Add(-6 * time.Minute)

	mock.ExpectExec("UPDATE sessions").
		WithArgs(out, raw, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CloseSession(ctx, 3, out, raw))

	mock.ExpectExec("UPDATE sessions").
		WithArgs(out, raw, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.CloseSession(ctx, 3, out, raw), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSessionsByDate(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	date := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)
	start := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	in1 := start.Add(9 * time.Hour)
	out1 := start.Add(17*time.Hour + 15*time.Minute)
	in2 := start.Add(10 * time.Hour)

	mock.ExpectQuery("WHERE check_in >= \\S+ AND check_in < \\S+\\s+ORDER BY id").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow(int64(1), "emp-1", in1, in1, out1, out1).
			AddRow(int64(2), "emp-2", in2, in2, nil, nil))

	sessions, err := repo.ListSessionsByDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "emp-1", sessions[0].EmployeeID)
	require.NotNil(t, sessions[0].CheckOut)
	assert.True(t, out1.Equal(*sessions[0].CheckOut))
	assert.True(t, sessions[1].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSessionsByEmployee(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	in := time.Date(2026, 10, 13, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE employee_id = \\S+\\s+ORDER BY id").
		WithArgs("emp-1").
		WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow(int64(1), "emp-1", in, in, nil, nil))

	sessions, err := repo.ListSessionsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	mock.ExpectQuery("WHERE employee_id = \\S+\\s+ORDER BY id").
		WithArgs("emp-1").
		WillReturnError(errors.New("db down"))

	_, err = repo.ListSessionsByEmployee(ctx, "emp-1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
