package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"rfid.attendance/internal/api/handler"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(service handler.AttendanceService, feed handler.NotificationFeed) *mux.Router {
	attendanceHandler := handler.AttendanceHandler{
		Service:       service,
		Notifications: feed,
	}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/cards", attendanceHandler.RegisterCard).Methods(http.MethodPost)
	api.HandleFunc("/scans", attendanceHandler.RecordScan).Methods(http.MethodPost)
	api.HandleFunc("/attendance", attendanceHandler.GetDailyAttendance).Methods(http.MethodGet)
	api.HandleFunc("/employees/{employeeId}/history", attendanceHandler.GetEmployeeHistory).Methods(http.MethodGet)
	api.HandleFunc("/reports/daily", attendanceHandler.GenerateDailyReport).Methods(http.MethodPost)
	api.HandleFunc("/notifications", attendanceHandler.ListNotifications).Methods(http.MethodGet)
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
