package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jharbyjoel/appointment-app/appointment"
	"github.com/jharbyjoel/appointment-app/appointment/storetest"
	"github.com/jharbyjoel/appointment-app/httpapi"
	"github.com/jharbyjoel/appointment-app/roster"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createBody = `{
	"customerEmail": "jane@example.com",
	"customerName": "Jane Doe",
	"phone": "555-0100",
	"startTime": "2025-03-10T09:00:00",
	"endTime": "2025-03-10T10:00:00",
	"status": "CONFIRMED",
	"notes": "Haircut",
	"location": "Main St"
}`

type response struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiRecord struct {
	PK            string `json:"PK"`
	SK            string `json:"SK"`
	TenantDateKey string `json:"tenantDateKey"`
	appointment.Appointment
}

type testServer struct {
	store   *storetest.MemoryStore
	handler http.Handler
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := storetest.NewMemoryStore()
	svc := appointment.NewService(store)

	agg, err := roster.NewAggregator(svc)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()

	return &testServer{
		store: store,
		reg:   reg,
		handler: httpapi.NewRouter(&httpapi.RouterDeps{
			Service:  svc,
			Roster:   agg,
			Metrics:  httpapi.NewMetrics(reg),
			Gatherer: reg,
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp response
	if rec.Code != http.StatusNoContent && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}

	return rec, resp
}

func TestCreateAppointment(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodPost, "/tenants/acme/appointments", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Appointment created", resp.Message)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var created apiRecord
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "TENANT#acme#CUSTOMER#jane@example.com", created.PK)
	assert.Equal(t, "APPOINTMENT#2025-03-10T09:00:00", created.SK)
	assert.Equal(t, "TENANT#acme#DATE#2025-03-10", created.TenantDateKey)
	assert.Equal(t, "2025-03-10", created.AppointmentDate)
	assert.Equal(t, 1, s.store.Len())
}

func TestCreateAppointmentRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", "", "Invalid request body"},
		{"malformed json", "{", "Invalid request body"},
		{"unknown field", `{"customerEmail":"a@b.co","PK":"x"}`, "Invalid request body"},
		{"trailing data", `{"customerEmail":"a@b.co"} {}`, "Invalid request body"},
		{"missing fields", `{"customerEmail":"jane@example.com"}`, "Missing required fields"},
		{"bad email", strings.Replace(createBody, "jane@example.com", "jane", 1), "Invalid email format"},
		{"bad status", strings.Replace(createBody, "CONFIRMED", "DONE", 1), "Invalid status"},
		{"end before start", strings.Replace(createBody, "2025-03-10T10:00:00", "2025-03-10T08:00:00", 1), "End time must be after start time"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t)

			rec, resp := s.do(t, http.MethodPost, "/tenants/acme/appointments", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.message, resp.Message)
			assert.Nil(t, resp.Data)
			assert.Equal(t, 0, s.store.Calls())
		})
	}
}

func TestInvalidTenant(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodPost, "/tenants/ac%23me/appointments", createBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid tenantId", resp.Message)
	assert.Equal(t, 0, s.store.Calls())
}

func TestUpdateAppointment(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/tenants/acme/appointments", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := s.do(t, http.MethodPut, "/tenants/acme/appointments",
		`{"customerEmail":"jane@example.com","startTime":"2025-03-10T09:00:00","notes":"Color"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Appointment updated", resp.Message)

	var updated apiRecord
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, "Color", updated.Notes)
	assert.Equal(t, appointment.StatusPending, updated.Status)
	assert.Equal(t, "Jane Doe", updated.CustomerName)
	assert.Equal(t, "2025-03-10T10:00:00", updated.EndTime)
}

func TestUpdateAppointmentMissingKey(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodPut, "/tenants/acme/appointments", `{"customerEmail":"jane@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", resp.Message)
	assert.Equal(t, 0, s.store.Calls())
}

func TestDeleteAppointment(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/tenants/acme/appointments", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `{"customerEmail":"jane@example.com","startTime":"2025-03-10T09:00:00"}`

	for range 2 {
		rec, resp := s.do(t, http.MethodDelete, "/tenants/acme/appointments", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Appointment deleted", resp.Message)
		assert.JSONEq(t, `{"PK":"TENANT#acme#CUSTOMER#jane@example.com","SK":"APPOINTMENT#2025-03-10T09:00:00"}`, string(resp.Data))
	}

	assert.Equal(t, 0, s.store.Len())
}

func TestGetAppointmentsByDate(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	later := strings.NewReplacer("T09:00:00", "T14:00:00", "T10:00:00", "T15:00:00").Replace(createBody)
	for _, body := range []string{later, createBody} {
		rec, _ := s.do(t, http.MethodPost, "/tenants/acme/appointments", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, resp := s.do(t, http.MethodGet, "/tenants/acme/appointments/2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully retrieved appointment details", resp.Message)

	var result struct {
		Items []apiRecord `json:"Items"`
		Count int         `json:"Count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Equal(t, 2, result.Count)
	assert.Equal(t, "2025-03-10T09:00:00", result.Items[0].StartTime)
	assert.Equal(t, "2025-03-10T14:00:00", result.Items[1].StartTime)
	assert.Equal(t, "TENANT#acme#DATE#2025-03-10", result.Items[0].TenantDateKey)

	rec, resp = s.do(t, http.MethodGet, "/tenants/other/appointments/2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"Items":[],"Count":0}`, string(resp.Data))
}

func TestGetAppointmentsByDateInvalidDate(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/tenants/acme/appointments/2025-13-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid date format", resp.Message)
	assert.Equal(t, 0, s.store.Calls())
}

func TestStoreFailureIs500(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.store.FailWith(errors.New("ProvisionedThroughputExceededException"))

	rec, resp := s.do(t, http.MethodGet, "/tenants/acme/appointments/2025-03-10", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, resp.Message, "ProvisionedThroughputExceededException")
}

func TestListCustomers(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	bodies := []string{
		createBody,
		strings.NewReplacer("2025-03-10T09", "2025-03-12T09", "2025-03-10T10", "2025-03-12T10").Replace(createBody),
		strings.NewReplacer("jane@example.com", "bob@example.com", "Jane Doe", "Bob Smith").Replace(createBody),
	}

	for _, body := range bodies {
		rec, _ := s.do(t, http.MethodPost, "/tenants/acme/appointments", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, resp := s.do(t, http.MethodGet, "/tenants/acme/customers?start=2025-03-09&end=2025-03-13", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Customers   []roster.Customer `json:"customers"`
		Partial     bool              `json:"partial"`
		FailedDates []string          `json:"failedDates"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))

	require.Len(t, result.Customers, 2)
	assert.Equal(t, "jane@example.com", result.Customers[0].CustomerEmail)
	assert.Equal(t, 2, result.Customers[0].AppointmentCount)
	assert.Equal(t, "2025-03-12T09:00:00", result.Customers[0].LastAppointment)
	assert.False(t, result.Partial)
	assert.Empty(t, result.FailedDates)

	rec, resp = s.do(t, http.MethodGet, "/tenants/acme/customers?start=2025-03-09&end=2025-03-13&q=smith", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Len(t, result.Customers, 1)
	assert.Equal(t, "bob@example.com", result.Customers[0].CustomerEmail)
}

func TestListCustomersInvalidRange(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/tenants/acme/customers?start=2025-03-13&end=2025-03-09", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid date range", resp.Message)
}

func TestListCustomersPartial(t *testing.T) {
	t.Parallel()

	store := storetest.NewMemoryStore()
	store.FailWith(errors.New("timeout"))

	svc := appointment.NewService(store)
	agg, err := roster.NewAggregator(svc)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	handler := httpapi.NewRouter(&httpapi.RouterDeps{Service: svc, Roster: agg, Metrics: httpapi.NewMetrics(reg)})

	req := httptest.NewRequest(http.MethodGet, "/tenants/acme/customers?start=2025-03-09&end=2025-03-10", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"message": "Successfully retrieved customers",
		"data": {"customers": [], "partial": true, "failedDates": ["2025-03-09", "2025-03-10"]}
	}`, rec.Body.String())

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "appointments_roster_failed_days_total" {
			found = true
			assert.InDelta(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}
	assert.True(t, found)
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodOptions, "/tenants/acme/appointments", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,POST,PUT,DELETE,OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Message)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.handler.ServeHTTP(mrec, req)

	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "appointments_http_requests_total")
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", resp.Message)
}

type panicService struct {
	httpapi.AppointmentService
}

func (panicService) QueryByDate(context.Context, string, string) ([]appointment.Appointment, error) {
	panic("boom")
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	handler := httpapi.NewRouter(&httpapi.RouterDeps{Service: panicService{}})

	req := httptest.NewRequest(http.MethodGet, "/tenants/acme/appointments/2025-03-10", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}

func TestRecoveryMiddleware_PanicIsLoggedAndCounted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	reg := prometheus.NewRegistry()

	handler := httpapi.NewRouter(&httpapi.RouterDeps{
		Service: panicService{},
		Logger:  slog.New(slog.NewJSONHandler(&buf, nil)),
		Metrics: httpapi.NewMetrics(reg),
	})

	req := httptest.NewRequest(http.MethodGet, "/tenants/acme/appointments/2025-03-10", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var logged bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) != nil || entry["msg"] != "http_request" {
			continue
		}

		logged = true
		assert.InDelta(t, 500, entry["status"], 0)
		assert.Equal(t, "ERROR", entry["level"])
	}
	assert.True(t, logged, "expected an http_request log line, got:\n%s", buf.String())

	families, err := reg.Gather()
	require.NoError(t, err)

	var counted float64
	for _, mf := range families {
		if mf.GetName() != "appointments_http_requests_total" {
			continue
		}

		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status_code" && lp.GetValue() == "500" {
					counted += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.InDelta(t, 1.0, counted, 0)
}
