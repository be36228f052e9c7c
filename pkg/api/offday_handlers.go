package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/httputil"
	"github.com/platinummonkey/lunchbox/pkg/offdays"
)

// OffDayHandlers handles school calendar HTTP requests
type OffDayHandlers struct {
	offDays OffDayService
}

// NewOffDayHandlers creates a new OffDayHandlers
func NewOffDayHandlers(offDayService OffDayService) *OffDayHandlers {
	return &OffDayHandlers{offDays: offDayService}
}

// RegisterRoutes registers the calendar routes parents can read
func (h *OffDayHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/schools/{id}/closed-dates", h.ListClosedDates).Methods("GET")
}

// RegisterAdminRoutes registers the off-day management routes
func (h *OffDayHandlers) RegisterAdminRoutes(router *mux.Router) {
	router.HandleFunc("/offdays", h.CreateOffDays).Methods("POST")
	router.HandleFunc("/offdays/{id}", h.DeleteOffDay).Methods("DELETE")
}

// ClosedDatesResponse lists the days a school takes no deliveries
type ClosedDatesResponse struct {
	SchoolID string          `json:"schoolId"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Dates    []calendar.Date `json:"dates"`
}

// ListClosedDates returns explicit off-days merged with weekly closures
func (h *OffDayHandlers) ListClosedDates(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	start := httputil.ParseQueryString(r, "start", "")
	end := httputil.ParseQueryString(r, "end", "")
	if !httputil.RequireNonEmpty(w, start, "start") || !httputil.RequireNonEmpty(w, end, "end") {
		return
	}

	dates, err := h.offDays.ListClosedDates(r.Context(), schoolID, start, end)
	if err != nil {
		writeError(w, r, err, "Failed to list closed dates")
		return
	}
	if dates == nil {
		dates = []calendar.Date{}
	}
	httputil.WriteSuccess(w, ClosedDatesResponse{SchoolID: schoolID, Start: start, End: end, Dates: dates})
}

// CreateOffDays closes the given schools over a date range
func (h *OffDayHandlers) CreateOffDays(w http.ResponseWriter, r *http.Request) {
	var req offdays.BulkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.offDays.BulkCreate(r.Context(), req)
	if err != nil {
		writeError(w, r, err, "Failed to create off-days")
		return
	}
	httputil.WriteCreated(w, result)
}

// DeleteOffDay removes one off-day
func (h *OffDayHandlers) DeleteOffDay(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.offDays.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "Failed to delete off-day")
		return
	}
	httputil.WriteNoContent(w)
}
