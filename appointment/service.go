package appointment

import (
	"context"
	"fmt"
)

// Store persists appointments in a single logical table with a date index.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create writes the full record at its primary key, replacing any
	// existing record.
	Create(ctx context.Context, appt *Appointment) error

	// Update applies the patch to the record at the key and returns the
	// record as stored afterwards. No existence check is made.
	Update(ctx context.Context, tenantID, customerEmail, startTime string, patch Patch) (*Appointment, error)

	// Delete removes the record at the key. Deleting a missing key succeeds.
	Delete(ctx context.Context, tenantID, customerEmail, startTime string) error

	// QueryByDate returns the tenant's appointments on date ordered by start
	// time, or an empty slice.
	QueryByDate(ctx context.Context, tenantID, date string) ([]Appointment, error)
}

// Service validates requests and runs exactly one store operation per call.
type Service struct {
	store Store
	opts  *Options
}

// NewService creates a Service on top of store.
func NewService(store Store, opts ...Option) *Service {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Service{
		store: store,
		opts:  options,
	}
}

// Create validates the input and upserts the appointment.
func (s *Service) Create(ctx context.Context, tenantID string, in *CreateInput) (*Appointment, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	if in == nil {
		return nil, ErrInvalidBody
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}

	appt := in.Appointment(tenantID)

	if err := s.store.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.notify(ctx, EventCreated, tenantID, appt)

	return appt, nil
}

// Update validates the input and patches the appointment. A missing status
// is stored as PENDING.
func (s *Service) Update(ctx context.Context, tenantID string, in *UpdateInput) (*Appointment, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	if in == nil {
		return nil, ErrInvalidBody
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}

	patch := in.Patch()

	appt, err := s.store.Update(ctx, tenantID, in.CustomerEmail, in.StartTime, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	eventType := EventUpdated
	if patch.StatusOrDefault() == StatusCancelled {
		eventType = EventCancelled
	}

	s.notify(ctx, eventType, tenantID, appt)

	return appt, nil
}

// Delete validates the input and removes the appointment.
func (s *Service) Delete(ctx context.Context, tenantID string, in *DeleteInput) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}

	if in == nil {
		return ErrInvalidBody
	}

	if err := in.Validate(); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, tenantID, in.CustomerEmail, in.StartTime); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	s.notify(ctx, EventDeleted, tenantID, &Appointment{
		TenantID:        tenantID,
		CustomerEmail:   in.CustomerEmail,
		StartTime:       in.StartTime,
		AppointmentDate: AppointmentDate(in.StartTime),
	})

	return nil
}

// QueryByDate returns the tenant's appointments on a YYYY-MM-DD date.
func (s *Service) QueryByDate(ctx context.Context, tenantID, date string) ([]Appointment, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}

	appts, err := s.store.QueryByDate(ctx, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments for %s: %w", date, err)
	}

	return appts, nil
}

func (s *Service) notify(ctx context.Context, eventType EventType, tenantID string, appt *Appointment) {
	if s.opts.notifier == nil || appt == nil {
		return
	}

	event := &Event{
		ID:          s.opts.newID(),
		Type:        eventType,
		Subject:     eventType.Subject(),
		TenantID:    tenantID,
		Appointment: *appt,
		OccurredAt:  s.opts.clock().UTC(),
	}

	if err := s.opts.notifier.Notify(ctx, event); err != nil {
		s.opts.logger.WarnContext(ctx, "Failed to publish appointment event",
			"event_id", event.ID,
			"event_type", string(event.Type),
			"tenant_id", tenantID,
			"error", err,
		)
	}
}
