package roster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jharbyjoel/appointment-app/appointment"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

var tracer = otel.Tracer("github.com/jharbyjoel/appointment-app/roster")

// DateQuerier returns one tenant's appointments for a single day. Both
// [appointment.Service] and the HTTP API client satisfy it.
type DateQuerier interface {
	QueryByDate(ctx context.Context, tenantID, date string) ([]appointment.Appointment, error)
}

// DateResult is the outcome of the query for one day. Err is nil on success.
type DateResult struct {
	Date         string
	Appointments []appointment.Appointment
	Err          error
}

// RangeResult is the merged outcome of a range fetch.
type RangeResult struct {
	// Appointments holds every appointment returned for the range, in date
	// order and without duplicate keys.
	Appointments []appointment.Appointment

	// Failed lists the days whose query failed. Those days contributed no
	// appointments.
	Failed []DateResult
}

// Partial reports whether at least one day failed.
func (r *RangeResult) Partial() bool {
	return len(r.Failed) > 0
}

// FailedDates returns the dates listed in Failed.
func (r *RangeResult) FailedDates() []string {
	dates := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		dates = append(dates, f.Date)
	}
	return dates
}

// Aggregator answers range queries by issuing one query per day.
type Aggregator struct {
	querier DateQuerier
	opts    *Options
}

// NewAggregator creates an Aggregator on top of querier.
func NewAggregator(querier DateQuerier, opts ...Option) (*Aggregator, error) {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregator options: %w", err)
	}

	return &Aggregator{
		querier: querier,
		opts:    options,
	}, nil
}

// Fetch returns all appointments of the tenant between start and end
// inclusive. Days are queried concurrently and Fetch waits for all of them.
// A failing day is logged and listed in the result; it never fails the call.
// Only an invalid range or missing tenant returns an error.
func (a *Aggregator) Fetch(ctx context.Context, tenantID, start, end string) (*RangeResult, error) {
	if err := appointment.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	dates, err := BoundedDateRange(start, end, a.opts.maxDays)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "roster.Fetch", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("start", start),
		attribute.String("end", end),
		attribute.Int("days", len(dates)),
	))
	defer span.End()

	started := time.Now()
	results := a.queryAll(ctx, tenantID, dates)
	merged := Merge(results)

	span.SetAttributes(
		attribute.Int("appointments", len(merged.Appointments)),
		attribute.Int("failed_days", len(merged.Failed)),
	)

	if merged.Partial() {
		span.SetStatus(codes.Error, "partial range")
	}

	for _, failed := range merged.Failed {
		a.opts.logger.WarnContext(ctx, "Appointment query failed, day omitted from range",
			"tenant_id", tenantID,
			"date", failed.Date,
			"error", failed.Err,
		)
	}

	a.opts.logger.DebugContext(ctx, "Completed appointment range fetch",
		"tenant_id", tenantID,
		"days", len(dates),
		"appointments", len(merged.Appointments),
		"failed_days", len(merged.Failed),
		"elapsed", time.Since(started),
	)

	return merged, nil
}

func (a *Aggregator) queryAll(ctx context.Context, tenantID string, dates []string) []DateResult {
	results := make([]DateResult, len(dates))

	wg := sync.WaitGroup{}
	sem := semaphore.NewWeighted(int64(a.opts.maxConcurrentQueries))

	for i, date := range dates {
		results[i].Date = date

		wg.Go(func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i].Err = err
				return
			}
			defer sem.Release(1)

			appts, err := a.querier.QueryByDate(ctx, tenantID, date)
			if err != nil {
				results[i].Err = err
				return
			}

			results[i].Appointments = appts
		})
	}

	wg.Wait()

	return results
}

// Merge flattens per-day results in the given order and drops appointments
// whose key was already seen. The first occurrence wins.
func Merge(results []DateResult) *RangeResult {
	merged := &RangeResult{Appointments: []appointment.Appointment{}}
	seen := make(map[string]struct{})

	for _, r := range results {
		if r.Err != nil {
			merged.Failed = append(merged.Failed, r)
			continue
		}

		for _, appt := range r.Appointments {
			key := appt.Key()
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			merged.Appointments = append(merged.Appointments, appt)
		}
	}

	return merged
}
