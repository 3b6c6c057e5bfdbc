package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"rfid.attendance/internal/core/model"
)

// AttendanceService is the set of operations the presentation layer calls. Every
// call is synchronous and manages its own store access.
type AttendanceService struct {
	registry *IdentityRegistry
	ledger   *Ledger
	reports  *ReportAggregator
	writer   *ReportWriter
	mailer   ReportMailer
	loc      *time.Location
	now      func() time.Time
}

// Option customises an AttendanceService.
type Option func(*AttendanceService)

// WithReportMailer also mails every generated daily report.
func WithReportMailer(m ReportMailer) Option {
	return func(s *AttendanceService) { s.mailer = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *AttendanceService) { s.now = now }
}

// WithLocation sets the zone scans and dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *AttendanceService) { s.loc = loc }
}

// NewAttendanceService creates a new instance of the application service.
func NewAttendanceService(registry *IdentityRegistry, ledger *Ledger, reports *ReportAggregator, writer *ReportWriter, opts ...Option) *AttendanceService {
	s := &AttendanceService{
		registry: registry,
		ledger:   ledger,
		reports:  reports,
		writer:   writer,
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the current time in the service's zone.
func (s *AttendanceService) Now() time.Time {
	return s.now().In(s.loc)
}

// Location is the zone scans and dates are interpreted in.
func (s *AttendanceService) Location() *time.Location {
	return s.loc
}

func (s *AttendanceService) RegisterOrIdentify(ctx context.Context, cardID string) (model.Resolution, error) {
	return s.registry.ResolveOrCreate(ctx, cardID)
}

// RecordScan records an event for employeeID at the current time.
func (s *AttendanceService) RecordScan(ctx context.Context, employeeID string) (model.RecordedEvent, error) {
	return s.ledger.RecordEvent(ctx, employeeID, s.Now())
}

// RecordScanAt records an event at an explicit time, converted into the service's zone.
func (s *AttendanceService) RecordScanAt(ctx context.Context, employeeID string, at time.Time) (model.RecordedEvent, error) {
	return s.ledger.RecordEvent(ctx, employeeID, at.In(s.loc))
}

func (s *AttendanceService) GetDailyAttendance(ctx context.Context, date time.Time) ([]model.DailyReportLine, error) {
	return s.reports.DailyReport(ctx, date.In(s.loc))
}

func (s *AttendanceService) GetEmployeeHistory(ctx context.Context, employeeID string) (model.EmployeeHistory, error) {
	return s.reports.EmployeeHistory(ctx, employeeID)
}

// GenerateDailyReport writes the artifact for date and returns its path. With a
// mailer configured the report is mailed afterwards; a delivery failure is
// returned together with the path of the already written file.
func (s *AttendanceService) GenerateDailyReport(ctx context.Context, date time.Time) (string, error) {
	date = date.In(s.loc)

	lines, err := s.reports.DailyReport(ctx, date)
	if err != nil {
		return "", err
	}

	path, err := s.writer.WriteDaily(date, lines)
	if err != nil {
		return "", err
	}
	log.Ctx(ctx).Info().Str("path", path).Int("lines", len(lines)).Msg("Daily report generated")

	if s.mailer != nil {
		if err := s.mailer.SendDailyReport(ctx, date, RenderDailyReport(lines)); err != nil {
			return path, fmt.Errorf("%w: %w", ErrReportDelivery, err)
		}
	}
	return path, nil
}

// ParseDate parses YYYY-MM-DD in the service's zone; empty means today.
func (s *AttendanceService) ParseDate(value string) (time.Time, error) {
	if value == "" {
		return s.Now(), nil
	}
	d, err := time.ParseInLocation(model.DateLayout, value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
	}
	return d, nil
}
