package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jharbyjoel/appointment-app/appointment"
)

// Request bodies are small JSON objects.
const maxBodyBytes = 1 << 20

// envelope is the body of every API response. Errors carry only a message.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// statusCoder is implemented by errors that know their HTTP status.
type statusCoder interface {
	StatusCode() int
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes {message} with the status the error carries, or 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError

	var sc statusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	writeJSON(w, status, envelope{Message: err.Error()})
}

// decodeBody decodes exactly one JSON object into dst. Unknown fields, an
// empty body and trailing data are rejected with [appointment.ErrInvalidBody].
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return appointment.ErrInvalidBody
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return appointment.ErrInvalidBody
	}

	// Exactly one value: anything after it, even a stray delimiter, is rejected.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return appointment.ErrInvalidBody
	}

	return nil
}
