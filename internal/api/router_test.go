package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rfid.attendance/internal/api/handler"
	"rfid.attendance/internal/core"
	"rfid.attendance/internal/core/model"
	"rfid.attendance/internal/ports/notify"
	"rfid.attendance/internal/ports/repository"
)

type nopAudit struct{}

func (nopAudit) Append(context.Context, model.RecordedEvent) error { return nil }

type fixture struct {
	router    http.Handler
	repo      *repository.MemoryRepository
	feed      *notify.Feed
	reportDir string
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      repository.NewMemoryRepository(),
		feed:      notify.NewFeed(10),
		reportDir: t.TempDir(),
		now:       time.Date(2026, 10, 14, 17, 5, 0, 0, time.UTC),
	}
	service := core.NewAttendanceService(
		core.NewIdentityRegistry(f.repo),
		core.NewLedger(f.repo, nopAudit{}, nil),
		core.NewReportAggregator(f.repo),
		core.NewReportWriter(f.reportDir),
		core.WithLocation(time.UTC),
		core.WithClock(func() time.Time { return f.now }),
	)
	f.router = NewRouter(service, f.feed)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRegisterCard(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/cards", `{"cardId":"04A1B2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Resolution](t, rec)
	assert.True(t, created.Created)
	assert.NotEmpty(t, created.EmployeeID)

	rec = f.do(t, http.MethodPost, "/api/v1/cards", `{"cardId":"04A1B2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[model.Resolution](t, rec)
	assert.False(t, again.Created)
	assert.Equal(t, created.EmployeeID, again.EmployeeID)
}

func TestRegisterCard_BadInput(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/cards", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/cards", `{"cardId":"  "}`).Code)
}

func TestScanAttendanceAndHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/scans", `{"employeeId":"emp-1","at":"08:07:40"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	in := decode[handler.ScanResponse](t, rec)
	assert.Equal(t, model.CheckedIn, in.Outcome)
	assert.Equal(t, "08:00", in.Rounded)
	assert.Equal(t, "08:07:40", in.Raw)
	assert.Equal(t, "2026-10-14", in.Date)

	// No "at": the service clock (17:05) is used.
	rec = f.do(t, http.MethodPost, "/api/v1/scans", `{"employeeId":"emp-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[handler.ScanResponse](t, rec)
	assert.Equal(t, model.CheckedOut, out.Outcome)
	assert.Equal(t, "17:00", out.Rounded)

	rec = f.do(t, http.MethodGet, "/api/v1/attendance?date=2026-10-14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	daily := decode[handler.AttendanceResponse](t, rec)
	require.Len(t, daily.Lines, 1)
	assert.Equal(t, "Employee: emp-1, In: 08:00, Out: 17:00, Worked: 9:00:00", daily.Lines[0].Text)

	rec = f.do(t, http.MethodGet, "/api/v1/employees/emp-1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[handler.HistoryResponse](t, rec)
	assert.Equal(t, "9:00:00", history.Total)
	require.Len(t, history.Sessions, 1)
	assert.Equal(t, "17:00", history.Sessions[0].CheckOut)
	assert.Equal(t, "In: 2026-10-14 08:00, Out: 17:00, Worked: 9:00:00", history.Sessions[0].Text)
}

func TestScan_Errors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/scans", `{"employeeId":"emp-1","at":"25:99"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/scans", `{"employeeId":""}`).Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/scans", `{"employeeId":"emp-1","at":"09:00"}`).Code)
	rec := f.do(t, http.MethodPost, "/api/v1/scans", `{"employeeId":"emp-1","at":"07:00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, f.repo.OpenSessions("emp-1"))
}

func TestAttendance_BadDate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/attendance?date=14/10/2026", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateDailyReport(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/scans", `{"employeeId":"emp-1","at":"08:00"}`).Code)

	rec := f.do(t, http.MethodPost, "/api/v1/reports/daily?date=2026-10-14", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[handler.ReportResponse](t, rec)
	assert.Equal(t, filepath.Join(f.reportDir, "report_2026-10-14.txt"), resp.Path)

	content, err := os.ReadFile(resp.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Employee: emp-1, In: 08:00, Out: --, Worked: --")
}

func TestNotificationsAndHealth(t *testing.T) {
	f := newFixture(t)
	f.feed.Notify(context.Background(), notify.Notification{Level: notify.LevelInfo, Title: "first"})
	f.feed.Notify(context.Background(), notify.Notification{Level: notify.LevelInfo, Title: "second"})

	rec := f.do(t, http.MethodGet, "/api/v1/notifications?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]notify.Notification](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "second", items[0].Title)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/notifications?limit=x", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/health", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/api/v1/scans", "").Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidTimeFormat, http.StatusBadRequest},
		{core.ErrInvalidCard, http.StatusBadRequest},
		{repository.ErrNotFound, http.StatusNotFound},
		{core.ErrSessionConflict, http.StatusConflict},
		{errors.Join(core.ErrStorage, errors.New("connection refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, handler.StatusFor(tt.err), tt.err.Error())
	}
}
