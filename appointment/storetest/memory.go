// Package storetest provides an in-memory [appointment.Store] and a set of
// behavioural tests that every store implementation must pass.
package storetest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/jharbyjoel/appointment-app/appointment"
)

// MemoryStore is an in-memory [appointment.Store] with the same write
// semantics as the real engines. It counts calls so tests can assert that
// invalid requests never reach the store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]appointment.Appointment
	calls   int
	err     error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]appointment.Appointment)}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of store operations attempted so far.
func (m *MemoryStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryStore) Create(_ context.Context, appt *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return m.err
	}

	if appt.TenantID == "" {
		return appointment.ErrMissingTenantID
	}

	if _, err := appointment.CustomerKey(appt.TenantID, appt.CustomerEmail); err != nil {
		return err
	}

	record := *appt
	record.AppointmentDate = appointment.AppointmentDate(appt.StartTime)
	m.records[appt.Key()] = record

	return nil
}

func (m *MemoryStore) Update(_ context.Context, tenantID, customerEmail, startTime string, patch appointment.Patch) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	if tenantID == "" {
		return nil, appointment.ErrMissingTenantID
	}

	if _, err := appointment.CustomerKey(tenantID, customerEmail); err != nil {
		return nil, err
	}

	key := (&appointment.Appointment{TenantID: tenantID, CustomerEmail: customerEmail, StartTime: startTime}).Key()

	appt, ok := m.records[key]
	if !ok {
		// Sparse record: key plus patched fields only, so it is not in the date index.
		appt = appointment.Appointment{TenantID: tenantID, CustomerEmail: customerEmail, StartTime: startTime}
	}

	if patch.EndTime != nil {
		appt.EndTime = *patch.EndTime
	}

	appt.Status = patch.StatusOrDefault()

	if patch.Notes != nil {
		appt.Notes = *patch.Notes
	}

	if patch.Location != nil {
		appt.Location = *patch.Location
	}

	m.records[key] = appt

	return &appt, nil
}

func (m *MemoryStore) Delete(_ context.Context, tenantID, customerEmail, startTime string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return m.err
	}

	if tenantID == "" {
		return appointment.ErrMissingTenantID
	}

	key := (&appointment.Appointment{TenantID: tenantID, CustomerEmail: customerEmail, StartTime: startTime}).Key()
	delete(m.records, key)

	return nil
}

func (m *MemoryStore) QueryByDate(_ context.Context, tenantID, date string) ([]appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	if tenantID == "" {
		return nil, appointment.ErrMissingTenantID
	}

	result := []appointment.Appointment{}

	for _, appt := range m.records {
		if appt.TenantID == tenantID && appt.AppointmentDate != "" && appt.AppointmentDate == date {
			result = append(result, appt)
		}
	}

	slices.SortFunc(result, func(a, b appointment.Appointment) int {
		return strings.Compare(appointment.AppointmentSortKey(a.StartTime), appointment.AppointmentSortKey(b.StartTime))
	})

	return result, nil
}
