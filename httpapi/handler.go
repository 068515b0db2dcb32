package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jharbyjoel/appointment-app/appointment"
	"github.com/jharbyjoel/appointment-app/roster"
)

// AppointmentService is the write and single-day read side of the API.
// It is satisfied by *appointment.Service.
type AppointmentService interface {
	Create(ctx context.Context, tenantID string, in *appointment.CreateInput) (*appointment.Appointment, error)
	Update(ctx context.Context, tenantID string, in *appointment.UpdateInput) (*appointment.Appointment, error)
	Delete(ctx context.Context, tenantID string, in *appointment.DeleteInput) error
	QueryByDate(ctx context.Context, tenantID, date string) ([]appointment.Appointment, error)
}

// RangeFetcher returns the appointments of a date range. It is satisfied by
// *roster.Aggregator.
type RangeFetcher interface {
	Fetch(ctx context.Context, tenantID, start, end string) (*roster.RangeResult, error)
}

// Handler serves the appointment endpoints.
type Handler struct {
	service AppointmentService
	roster  RangeFetcher
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(service AppointmentService, fetcher RangeFetcher, metrics *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Handler{
		service: service,
		roster:  fetcher,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateAppointment handles POST /tenants/{tenantId}/appointments.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointment.CreateInput

	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	appt, err := h.service.Create(r.Context(), tenantID(r), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{Message: "Appointment created", Data: newRecord(appt)})
}

// UpdateAppointment handles PUT /tenants/{tenantId}/appointments.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointment.UpdateInput

	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	appt, err := h.service.Update(r.Context(), tenantID(r), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Message: "Appointment updated", Data: newRecord(appt)})
}

// DeleteAppointment handles DELETE /tenants/{tenantId}/appointments.
func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointment.DeleteInput

	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	tenant := tenantID(r)

	if err := h.service.Delete(r.Context(), tenant, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	deleted := appointment.Appointment{TenantID: tenant, CustomerEmail: in.CustomerEmail, StartTime: in.StartTime}

	writeJSON(w, http.StatusOK, envelope{
		Message: "Appointment deleted",
		Data:    deletedKey{PK: deleted.PartitionKey(), SK: deleted.SortKey()},
	})
}

// GetAppointmentsByDate handles GET /tenants/{tenantId}/appointments/{date}.
func (h *Handler) GetAppointmentsByDate(w http.ResponseWriter, r *http.Request) {
	appts, err := h.service.QueryByDate(r.Context(), tenantID(r), urlParam(r, "date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	records := newRecords(appts)

	writeJSON(w, http.StatusOK, envelope{
		Message: "Successfully retrieved appointment details",
		Data:    queryResult{Items: records, Count: len(records)},
	})
}

// ListCustomers handles GET /tenants/{tenantId}/customers. The range comes
// from the start and end query parameters; a missing bound falls back to the
// default roster window. q filters the result.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	window := roster.DefaultWindow(h.now())

	start := query.Get("start")
	if start == "" {
		start = window.Start
	}

	end := query.Get("end")
	if end == "" {
		end = window.End
	}

	result, err := h.roster.Fetch(r.Context(), tenantID(r), start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.RecordFailedDays(len(result.Failed))

	customers := roster.FilterCustomers(roster.DeriveCustomers(result.Appointments), query.Get("q"))

	writeJSON(w, http.StatusOK, envelope{
		Message: "Successfully retrieved customers",
		Data: customersResult{
			Customers:   customers,
			Partial:     result.Partial(),
			FailedDates: result.FailedDates(),
		},
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Message: "ok"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

func tenantID(r *http.Request) string {
	return urlParam(r, "tenantId")
}

// urlParam returns the decoded route parameter. chi matches on the escaped
// path when one is present, so parameters may still be percent-encoded.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)

	value, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}

	return value
}
