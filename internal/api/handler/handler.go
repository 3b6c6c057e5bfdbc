package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"rfid.attendance/internal/core"
	"rfid.attendance/internal/core/model"
	"rfid.attendance/internal/ports/notify"
	"rfid.attendance/internal/ports/repository"
)

// AttendanceService is the part of core.AttendanceService the handlers call.
type AttendanceService interface {
	Now() time.Time
	ParseDate(value string) (time.Time, error)
	RegisterOrIdentify(ctx context.Context, cardID string) (model.Resolution, error)
	RecordScanAt(ctx context.Context, employeeID string, at time.Time) (model.RecordedEvent, error)
	GetDailyAttendance(ctx context.Context, date time.Time) ([]model.DailyReportLine, error)
	GetEmployeeHistory(ctx context.Context, employeeID string) (model.EmployeeHistory, error)
	GenerateDailyReport(ctx context.Context, date time.Time) (string, error)
}

type NotificationFeed interface {
	Recent(n int) []notify.Notification
}

type AttendanceHandler struct {
	Service       AttendanceService
	Notifications NotificationFeed
}

type RegisterCardRequest struct {
	CardID string `json:"cardId"`
}

type RecordScanRequest struct {
	EmployeeID string `json:"employeeId"`
	// At is an optional "HH:MM" or "HH:MM:SS" on today's date.
	At string `json:"at,omitempty"`
}

type ScanResponse struct {
	EmployeeID string             `json:"employeeId"`
	SessionID  int64              `json:"sessionId"`
	Outcome    model.EventOutcome `json:"outcome"`
	Date       string             `json:"date"`
	Rounded    string             `json:"rounded"`
	Raw        string             `json:"raw"`
	Warning    string             `json:"warning,omitempty"`
}

type LineResponse struct {
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	CheckIn    string `json:"checkIn"`
	CheckOut   string `json:"checkOut"`
	Worked     string `json:"worked"`
	Text       string `json:"text"`
}

type AttendanceResponse struct {
	Date  string         `json:"date"`
	Lines []LineResponse `json:"lines"`
}

type HistoryResponse struct {
	EmployeeID string         `json:"employeeId"`
	Sessions   []LineResponse `json:"sessions"`
	Total      string         `json:"total"`
}

type ReportResponse struct {
	Date    string `json:"date"`
	Path    string `json:"path"`
	Warning string `json:"warning,omitempty"`
}

func (h *AttendanceHandler) RegisterCard(w http.ResponseWriter, r *http.Request) {
	var req RegisterCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.Service.RegisterOrIdentify(r.Context(), req.CardID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *AttendanceHandler) RecordScan(w http.ResponseWriter, r *http.Request) {
	var req RecordScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	at := h.Service.Now()
	if req.At != "" {
		var err error
		if at, err = core.ClockOn(at, req.At); err != nil {
			writeError(r.Context(), w, err)
			return
		}
	}

	event, err := h.Service.RecordScanAt(r.Context(), req.EmployeeID, at)
	if err != nil && !errors.Is(err, core.ErrAuditTrail) {
		writeError(r.Context(), w, err)
		return
	}

	resp := ScanResponse{
		EmployeeID: event.EmployeeID,
		SessionID:  event.SessionID,
		Outcome:    event.Outcome,
		Date:       event.Rounded.Format(model.DateLayout),
		Rounded:    event.Rounded.Format(model.ClockLayout),
		Raw:        event.Raw.Format(model.ClockLayoutFull),
	}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AttendanceHandler) GetDailyAttendance(w http.ResponseWriter, r *http.Request) {
	date, err := h.Service.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	lines, err := h.Service.GetDailyAttendance(r.Context(), date)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, AttendanceResponse{
		Date:  date.Format(model.DateLayout),
		Lines: toLines(lines, model.DailyReportLine.String),
	})
}

func (h *AttendanceHandler) GetEmployeeHistory(w http.ResponseWriter, r *http.Request) {
	employeeID := mux.Vars(r)["employeeId"]

	history, err := h.Service.GetEmployeeHistory(r.Context(), employeeID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		EmployeeID: history.EmployeeID,
		Sessions:   toLines(history.Lines, model.DailyReportLine.HistoryString),
		Total:      model.FormatDuration(history.Total),
	})
}

func (h *AttendanceHandler) GenerateDailyReport(w http.ResponseWriter, r *http.Request) {
	date, err := h.Service.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	path, err := h.Service.GenerateDailyReport(r.Context(), date)
	if err != nil && !errors.Is(err, core.ErrReportDelivery) {
		writeError(r.Context(), w, err)
		return
	}

	resp := ReportResponse{Date: date.Format(model.DateLayout), Path: path}
	if err != nil {
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *AttendanceHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.Notifications.Recent(limit))
}

func toLines(lines []model.DailyReportLine, render func(model.DailyReportLine) string) []LineResponse {
	out := make([]LineResponse, 0, len(lines))
	for _, l := range lines {
		checkOut := model.Unknown
		if l.CheckOut != nil {
			checkOut = l.CheckOut.Format(model.ClockLayout)
		}
		out = append(out, LineResponse{
			EmployeeID: l.EmployeeID,
			Date:       l.CheckIn.Format(model.DateLayout),
			CheckIn:    l.CheckIn.Format(model.ClockLayout),
			CheckOut:   checkOut,
			Worked:     model.FormatWorked(l.Worked),
			Text:       render(l),
		})
	}
	return out
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidTimeFormat),
		errors.Is(err, core.ErrInvalidCard),
		errors.Is(err, core.ErrInvalidEmployee):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidSession),
		errors.Is(err, core.ErrSessionConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(ctx).Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
