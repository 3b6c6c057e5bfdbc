package core

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rfid.attendance/internal/core/model"
	"rfid.attendance/internal/ports/repository"
)

type fakeMailer struct {
	dates  []time.Time
	bodies []string
	err    error
}

func (m *fakeMailer) SendDailyReport(_ context.Context, date time.Time, body []byte) error {
	m.dates = append(m.dates, date)
	m.bodies = append(m.bodies, string(body))
	return m.err
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{}, f.err
}

func newTestService(t *testing.T, now time.Time, opts ...Option) (*AttendanceService, *recordingAudit, string) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	audit := &recordingAudit{}
	dir := t.TempDir()

	opts = append([]Option{WithClock(func() time.Time { return now }), WithLocation(time.UTC)}, opts...)
	svc := NewAttendanceService(
		NewIdentityRegistry(repo),
		NewLedger(repo, audit, nil),
		NewReportAggregator(repo),
		NewReportWriter(dir),
		opts...,
	)
	return svc, audit, dir
}

func TestAttendanceService_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, audit, _ := newTestService(t, at(9, 7, 30))

	res, err := svc.RegisterOrIdentify(ctx, "AA11")
	require.NoError(t, err)
	assert.True(t, res.Created)

	again, err := svc.RegisterOrIdentify(ctx, "AA11")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.EmployeeID, again.EmployeeID)

	in, err := svc.RecordScanAt(ctx, res.EmployeeID, at(9, 7, 45))
	require.NoError(t, err)
	assert.Equal(t, model.CheckedIn, in.Outcome)
	assert.Equal(t, "09:00", in.Rounded.Format(model.ClockLayout))

	out, err := svc.RecordScanAt(ctx, res.EmployeeID, at(17, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, model.CheckedOut, out.Outcome)
	assert.Equal(t, "17:15", out.Rounded.Format(model.ClockLayout))

	lines, err := svc.GetDailyAttendance(ctx, at(0, 0, 0))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "8:15:00", model.FormatWorked(lines[0].Worked))

	history, err := svc.GetEmployeeHistory(ctx, res.EmployeeID)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+15*time.Minute, history.Total)

	assert.Len(t, audit.lines, 2)
}

func TestAttendanceService_RecordScanUsesClock(t *testing.T) {
	svc, _, _ := newTestService(t, at(8, 52, 10))

	event, err := svc.RecordScan(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, model.CheckedIn, event.Outcome)
	assert.True(t, at(9, 0, 0).Equal(event.Rounded))
	assert.True(t, at(8, 52, 10).Equal(event.Raw))
}

func TestAttendanceService_GenerateDailyReport(t *testing.T) {
	ctx := context.Background()

	t.Run("writes artifact and mails it", func(t *testing.T) {
		mailer := &fakeMailer{}
		svc, _, dir := newTestService(t, at(9, 0, 0), WithReportMailer(mailer))

		_, err := svc.RecordScan(ctx, "emp-1")
		require.NoError(t, err)

		path, err := svc.GenerateDailyReport(ctx, at(0, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, dir+"/report_2026-10-14.txt", path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "Employee: emp-1, In: 09:00, Out: --, Worked: --")

		require.Len(t, mailer.bodies, 1)
		assert.Equal(t, string(content), mailer.bodies[0])
	})

	t.Run("mail failure keeps the file", func(t *testing.T) {
		mailer := &fakeMailer{err: errors.New("throttled")}
		svc, _, _ := newTestService(t, at(9, 0, 0), WithReportMailer(mailer))

		path, err := svc.GenerateDailyReport(ctx, at(0, 0, 0))
		assert.ErrorIs(t, err, ErrReportDelivery)
		require.NotEmpty(t, path)
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr)
	})
}

func TestAttendanceService_ParseDate(t *testing.T) {
	svc, _, _ := newTestService(t, at(11, 0, 0))

	d, err := svc.ParseDate("2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), d)

	today, err := svc.ParseDate("")
	require.NoError(t, err)
	assert.True(t, at(11, 0, 0).Equal(today))

	_, err = svc.ParseDate("31/01/2026")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestSESReportMailer(t *testing.T) {
	client := &fakeSES{}
	mailer := NewSESReportMailer(client, "reports@factory.com", "hr@factory.com")

	require.NoError(t, mailer.SendDailyReport(context.Background(), at(0, 0, 0), []byte("Daily Attendance Report\n")))
	require.NotNil(t, client.input)
	assert.Equal(t, "reports@factory.com", *client.input.Source)
	assert.Equal(t, []string{"hr@factory.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Attendance report 2026-10-14", *client.input.Message.Subject.Data)
	assert.Equal(t, "Daily Attendance Report\n", *client.input.Message.Body.Text.Data)

	client.err = errors.New("rejected")
	assert.Error(t, mailer.SendDailyReport(context.Background(), at(0, 0, 0), nil))
}
