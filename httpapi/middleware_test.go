package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jharbyjoel/appointment-app/appointment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		r := chi.NewRouter()
		r.Use(NewLoggingMiddleware(logger, nil))
		r.Get("/tenants/{tenantId}/x", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tenants/acme/x", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

		assert.Equal(t, tt.level, entry["level"])
		assert.Equal(t, "http_request", entry["msg"])
		assert.Equal(t, "GET", entry["method"])
		assert.Equal(t, "/tenants/acme/x", entry["path"])
		assert.Equal(t, "/tenants/{tenantId}/x", entry["route"])
		assert.Equal(t, "acme", entry["tenant_id"])
		assert.InDelta(t, float64(tt.status), entry["status"], 0)
	}
}

func TestStatusRecorder_DefaultsToOK(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	_, err := rec.Write([]byte("hi"))
	require.NoError(t, err)
	rec.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusOK, rec.statusCode)
}

func TestCORSMiddleware_PassesThrough(t *testing.T) {
	called := false
	h := NewCORSMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tenants/acme/appointments", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDecodeBody_TooLarge(t *testing.T) {
	body := `{"notes":"` + string(bytes.Repeat([]byte("a"), maxBodyBytes)) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	var dst struct {
		Notes string `json:"notes"`
	}

	err := decodeBody(httptest.NewRecorder(), req, &dst)
	assert.Error(t, err)
}

func TestDecodeBody_SingleValueOnly(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"one object", `{"notes":"a"}`, false},
		{"trailing whitespace", "{\"notes\":\"a\"}\n  ", false},
		{"stray closing brace", `{"notes":"a"}}`, true},
		{"stray closing bracket", `{"notes":"a"}]`, true},
		{"second object", `{"notes":"a"}{"notes":"b"}`, true},
		{"trailing garbage", `{"notes":"a"} x`, true},
		{"unknown field", `{"notes":"a","extra":1}`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/", bytes.NewBufferString(tt.body))
			var dst struct {
				Notes string `json:"notes"`
			}

			err := decodeBody(httptest.NewRecorder(), req, &dst)
			if tt.wantErr {
				assert.ErrorIs(t, err, appointment.ErrInvalidBody)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "a", dst.Notes)
		})
	}
}

func TestTracingMiddleware_NamesSpanAfterRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	r := chi.NewRouter()
	r.Use(NewTracingMiddleware(provider))
	r.Get("/tenants/{tenantId}/appointments/{date}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/tenants/acme/appointments/2025-03-10", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /tenants/{tenantId}/appointments/{date}", spans[0].Name())
}
