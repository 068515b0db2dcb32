// Package apiclient is a Go client for the appointment HTTP API. Its
// QueryByDate method makes it usable as a [roster.DateQuerier], so rosters can
// be built against a remote deployment.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jharbyjoel/appointment-app/appointment"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx response. Message is the message field of the
// response body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status of the response.
func (e *APIError) StatusCode() int {
	return e.Status
}

type Option func(*Options)

type Options struct {
	httpClient *http.Client
	timeout    time.Duration
}

func newOptions() *Options {
	return &Options{
		timeout: 10 * time.Second,
	}
}

// WithHTTPClient replaces the default HTTP client. The timeout option is
// ignored when a client is given. The default client propagates trace context
// through otelhttp.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
// Default: 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.timeout = d
	}
}

// Client calls the appointment API at a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   options.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

type response struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Create calls POST /tenants/{tenantId}/appointments.
func (c *Client) Create(ctx context.Context, tenantID string, in *appointment.CreateInput) (*appointment.Appointment, error) {
	var appt appointment.Appointment

	if err := c.do(ctx, http.MethodPost, c.appointmentsPath(tenantID), in, &appt); err != nil {
		return nil, err
	}

	return &appt, nil
}

// Update calls PUT /tenants/{tenantId}/appointments.
func (c *Client) Update(ctx context.Context, tenantID string, in *appointment.UpdateInput) (*appointment.Appointment, error) {
	var appt appointment.Appointment

	if err := c.do(ctx, http.MethodPut, c.appointmentsPath(tenantID), in, &appt); err != nil {
		return nil, err
	}

	return &appt, nil
}

// Delete calls DELETE /tenants/{tenantId}/appointments.
func (c *Client) Delete(ctx context.Context, tenantID string, in *appointment.DeleteInput) error {
	return c.do(ctx, http.MethodDelete, c.appointmentsPath(tenantID), in, nil)
}

// QueryByDate calls GET /tenants/{tenantId}/appointments/{date}.
func (c *Client) QueryByDate(ctx context.Context, tenantID, date string) ([]appointment.Appointment, error) {
	var result struct {
		Items []appointment.Appointment `json:"Items"`
	}

	path := c.appointmentsPath(tenantID) + "/" + url.PathEscape(date)

	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	if result.Items == nil {
		return []appointment.Appointment{}, nil
	}

	return result.Items, nil
}

func (c *Client) appointmentsPath(tenantID string) string {
	return "/tenants/" + url.PathEscape(tenantID) + "/appointments"
}

func (c *Client) do(ctx context.Context, method, path string, body, data any) error {
	var reader io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}

		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}

	defer resp.Body.Close()

	var env response

	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}

		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if data == nil || len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("failed to decode response data from %s %s: %w", method, path, err)
	}

	return nil
}
