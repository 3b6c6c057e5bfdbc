package messaging

import (
	"time"

	"rfid.attendance/internal/core/model"
)

// AttendanceEvent is the JSON payload sent via SQS for every recorded scan.
type AttendanceEvent struct {
	EmployeeID  string             `json:"employeeId"`
	SessionID   int64              `json:"sessionId"`
	Outcome     model.EventOutcome `json:"outcome"`
	Date        string             `json:"date"`
	RoundedTime string             `json:"roundedTime"`
	RawTime     string             `json:"rawTime"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

func NewAttendanceEvent(e model.RecordedEvent) AttendanceEvent {
	return AttendanceEvent{
		EmployeeID:  e.EmployeeID,
		SessionID:   e.SessionID,
		Outcome:     e.Outcome,
		Date:        e.Rounded.Format(model.DateLayout),
		RoundedTime: e.Rounded.Format(model.ClockLayout),
		RawTime:     e.Raw.Format(model.ClockLayoutFull),
		OccurredAt:  e.Raw,
	}
}
