package core

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rfid.attendance/internal/core/model"
	"rfid.attendance/internal/ports/repository"
)

const (
	reportTitle     = "Daily Attendance Report"
	reportUnderline = "======================"
)

// ReportAggregator derives report lines from the ledger. It never writes.
type ReportAggregator struct {
	repo repository.SessionRepository
}

func NewReportAggregator(repo repository.SessionRepository) *ReportAggregator {
	return &ReportAggregator{repo: repo}
}

// DailyReport returns one line per session checked in on date, in row order.
func (a *ReportAggregator) DailyReport(ctx context.Context, date time.Time) ([]model.DailyReportLine, error) {
	sessions, err := a.repo.ListSessionsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions for %s: %w", ErrStorage, date.Format(model.DateLayout), err)
	}

	lines := make([]model.DailyReportLine, 0, len(sessions))
	for _, s := range sessions {
		lines = append(lines, reportLine(s))
	}
	return lines, nil
}

// EmployeeHistory returns every session of an employee and the sum of all closed
// session durations across the whole history.
func (a *ReportAggregator) EmployeeHistory(ctx context.Context, employeeID string) (model.EmployeeHistory, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return model.EmployeeHistory{}, ErrInvalidEmployee
	}

	sessions, err := a.repo.ListSessionsByEmployee(ctx, employeeID)
	if err != nil {
		return model.EmployeeHistory{}, fmt.Errorf("%w: list sessions for %s: %w", ErrStorage, employeeID, err)
	}

	history := model.EmployeeHistory{
		EmployeeID: employeeID,
		Lines:      make([]model.DailyReportLine, 0, len(sessions)),
	}
	for _, s := range sessions {
		line := reportLine(s)
		if line.Worked != nil {
			history.Total += *line.Worked
		}
		history.Lines = append(history.Lines, line)
	}
	return history, nil
}

func reportLine(s model.Session) model.DailyReportLine {
	line := model.DailyReportLine{
		EmployeeID: s.EmployeeID,
		CheckIn:    s.CheckIn,
		CheckOut:   s.CheckOut,
	}
	if s.CheckOut != nil {
		worked := s.CheckOut.Sub(s.CheckIn)
		line.Worked = &worked
	}
	return line
}

// ReportWriter writes report artifacts into one directory, one file per date.
type ReportWriter struct {
	dir string
}

func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

// Path is the deterministic artifact location for date.
func (w *ReportWriter) Path(date time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("report_%s.txt", date.Format(model.DateLayout)))
}

// WriteDaily replaces the artifact for date and returns its path.
func (w *ReportWriter) WriteDaily(date time.Time, lines []model.DailyReportLine) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	path := w.Path(date)
	if err := os.WriteFile(path, RenderDailyReport(lines), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// RenderDailyReport is the artifact text: a header and one line per session.
func RenderDailyReport(lines []model.DailyReportLine) []byte {
	var buf bytes.Buffer
	buf.WriteString(reportTitle + "\n")
	buf.WriteString(reportUnderline + "\n")
	for _, l := range lines {
		buf.WriteString(l.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
