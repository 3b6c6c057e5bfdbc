package core

import "errors"

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidCard       = errors.New("card id must not be empty")
	ErrInvalidEmployee   = errors.New("employee id must not be empty")
	ErrStorage           = errors.New("storage error")
	ErrInvalidSession    = errors.New("check-out precedes check-in")
	ErrSessionConflict   = errors.New("concurrent check-in for employee")
	ErrAuditTrail        = errors.New("audit trail write failed")
	ErrReportDelivery    = errors.New("report delivery failed")
)
