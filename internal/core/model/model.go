package model

import (
	"fmt"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	ClockLayout     = "15:04"
	ClockLayoutFull = "15:04:05"
	Unknown         = "--"
)

// EventOutcome is the toggle result of one recorded scan.
type EventOutcome string

const (
	CheckedIn  EventOutcome = "CHECKED_IN"
	CheckedOut EventOutcome = "CHECKED_OUT"
)

// Resolution is the result of resolving a card to an employee.
type Resolution struct {
	EmployeeID string `json:"employeeId"`
	CardID     string `json:"cardId"`
	Created    bool   `json:"created"`
}

// Session is one check-in/check-out pair. CheckOut is nil while the session is open.
type Session struct {
	ID          int64      `json:"id"`
	EmployeeID  string     `json:"employeeId"`
	CheckIn     time.Time  `json:"checkIn"`
	CheckInRaw  time.Time  `json:"checkInRaw"`
	CheckOut    *time.Time `json:"checkOut,omitempty"`
	CheckOutRaw *time.Time `json:"checkOutRaw,omitempty"`
}

func (s Session) Open() bool {
	return s.CheckOut == nil
}

// RecordedEvent describes what a single ledger write did.
type RecordedEvent struct {
	EmployeeID string       `json:"employeeId"`
	SessionID  int64        `json:"sessionId"`
	Outcome    EventOutcome `json:"outcome"`
	Rounded    time.Time    `json:"rounded"`
	Raw        time.Time    `json:"raw"`
}

// AuditLine renders the event the way the audit trail stores it. The date is the
// rounded one, so a scan that rounds past midnight is logged on the next day.
func (e RecordedEvent) AuditLine() string {
	return fmt.Sprintf("%s %s (%s), %s",
		e.Rounded.Format(DateLayout), e.Rounded.Format(ClockLayout), e.Raw.Format(ClockLayoutFull), e.EmployeeID)
}

// DailyReportLine is the derived per-session view used by reports.
type DailyReportLine struct {
	EmployeeID string         `json:"employeeId"`
	CheckIn    time.Time      `json:"checkIn"`
	CheckOut   *time.Time     `json:"checkOut,omitempty"`
	Worked     *time.Duration `json:"worked,omitempty"`
}

func (l DailyReportLine) String() string {
	return fmt.Sprintf("Employee: %s, In: %s, Out: %s, Worked: %s",
		l.EmployeeID, l.CheckIn.Format(ClockLayout), formatClock(l.CheckOut), FormatWorked(l.Worked))
}

// HistoryString renders the line without the employee column.
func (l DailyReportLine) HistoryString() string {
	return fmt.Sprintf("In: %s %s, Out: %s, Worked: %s",
		l.CheckIn.Format(DateLayout), l.CheckIn.Format(ClockLayout), formatClock(l.CheckOut), FormatWorked(l.Worked))
}

// EmployeeHistory is every session of one employee with the summed closed durations.
type EmployeeHistory struct {
	EmployeeID string            `json:"employeeId"`
	Lines      []DailyReportLine `json:"lines"`
	Total      time.Duration     `json:"total"`
}

// FormatWorked renders a duration as H:MM:SS, or "--" when unknown.
func FormatWorked(d *time.Duration) string {
	if d == nil {
		return Unknown
	}
	return FormatDuration(*d)
}

// FormatDuration renders d as H:MM:SS with unbounded hours.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%s%d:%02d:%02d", sign, h, m, s)
}

func formatClock(t *time.Time) string {
	if t == nil {
		return Unknown
	}
	return t.Format(ClockLayout)
}
