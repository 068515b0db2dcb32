package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jharbyjoel/appointment-app/appointment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAll runs every store behaviour test against store as subtests.
func RunAll(t *testing.T, store appointment.Store) {
	t.Helper()

	t.Run("CreateAndQueryByDate", func(t *testing.T) { TestCreateAndQueryByDate(t, store) })
	t.Run("CreateOverwrites", func(t *testing.T) { TestCreateOverwrites(t, store) })
	t.Run("CreateDerivesAppointmentDate", func(t *testing.T) { TestCreateDerivesAppointmentDate(t, store) })
	t.Run("QueryByDateOrdering", func(t *testing.T) { TestQueryByDateOrdering(t, store) })
	t.Run("QueryByDateEmpty", func(t *testing.T) { TestQueryByDateEmpty(t, store) })
	t.Run("TenantIsolation", func(t *testing.T) { TestTenantIsolation(t, store) })
	t.Run("UpdatePatchesFields", func(t *testing.T) { TestUpdatePatchesFields(t, store) })
	t.Run("UpdateDefaultsStatus", func(t *testing.T) { TestUpdateDefaultsStatus(t, store) })
	t.Run("UpdateMissingRecord", func(t *testing.T) { TestUpdateMissingRecord(t, store) })
	t.Run("DeleteIsIdempotent", func(t *testing.T) { TestDeleteIsIdempotent(t, store) })
	t.Run("MissingTenantID", func(t *testing.T) { TestMissingTenantID(t, store) })
}

// NewTenantID returns a tenant ID that no other test uses.
func NewTenantID() string {
	return "test-" + uuid.NewString()
}

// NewAppointment returns a valid appointment for tenantID starting at startTime.
func NewAppointment(tenantID, email, startTime string) *appointment.Appointment {
	return &appointment.Appointment{
		TenantID:        tenantID,
		CustomerEmail:   email,
		CustomerName:    "Test Customer",
		Phone:           "555-0100",
		StartTime:       startTime,
		EndTime:         startTime[:11] + "23:59:59",
		AppointmentDate: appointment.AppointmentDate(startTime),
		Status:          appointment.StatusConfirmed,
		Notes:           "Consultation",
		Location:        "Room 1",
	}
}

func TestCreateAndQueryByDate(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantID := NewTenantID()

	appt := NewAppointment(tenantID, "a@x.com", "2024-01-01T09:00:00")
	require.NoError(t, store.Create(ctx, appt))

	result, err := store.QueryByDate(ctx, tenantID, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, *appt, result[0])
}

func TestCreateOverwrites(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantID := NewTenantID()

	first := NewAppointment(tenantID, "a@x.com", "2024-01-01T09:00:00")
	first.Notes = "first"
	require.NoError(t, store.Create(ctx, first))

	second := NewAppointment(tenantID, "a@x.com", "2024-01-01T09:00:00")
	second.Notes = "second"
	require.NoError(t, store.Create(ctx, second))

	result, err := store.QueryByDate(ctx, tenantID, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "second", result[0].Notes)
}

// TestCreateDerivesAppointmentDate checks that the date index follows
// StartTime, whatever AppointmentDate the caller passed in.
func TestCreateDerivesAppointmentDate(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantID := NewTenantID()

	stale := NewAppointment(tenantID, "stale@x.com", "2024-02-03T09:00:00")
	stale.AppointmentDate = "1999-12-31"
	require.NoError(t, store.Create(ctx, stale))

	blank := NewAppointment(tenantID, "blank@x.com", "2024-02-03T10:00:00")
	blank.AppointmentDate = ""
	require.NoError(t, store.Create(ctx, blank))

	result, err := store.QueryByDate(ctx, tenantID, "2024-02-03")
	require.NoError(t, err)
	require.Len(t, result, 2)

	for _, appt := range result {
		assert.Equal(t, "2024-02-03", appt.AppointmentDate)
	}

	result, err = store.QueryByDate(ctx, tenantID, "1999-12-31")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestQueryByDateOrdering(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantID := NewTenantID()

	for _, start := range []string{"2024-01-01T15:00:00", "2024-01-01T09:00:00", "2024-01-01T11:30:00"} {
		require.NoError(t, store.Create(ctx, NewAppointment(tenantID, "a@x.com", start)))
	}

	require.NoError(t, store.Create(ctx, NewAppointment(tenantID, "a@x.com", "2024-01-02T08:00:00")))

	result, err := store.QueryByDate(ctx, tenantID, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "2024-01-01T09:00:00", result[0].StartTime)
	assert.Equal(t, "2024-01-01T11:30:00", result[1].StartTime)
	assert.Equal(t, "2024-01-01T15:00:00", result[2].StartTime)
}

func TestQueryByDateEmpty(t *testing.T, store appointment.Store) {
	result, err := store.QueryByDate(context.Background(), NewTenantID(), "2024-01-01")
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestTenantIsolation(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantA := NewTenantID()
	tenantB := NewTenantID()

	require.NoError(t, store.Create(ctx, NewAppointment(tenantA, "a@x.com", "2024-01-01T09:00:00")))

	result, err := store.QueryByDate(ctx, tenantB, "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestUpdatePatchesFields(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantID := NewTenantID()

	appt := NewAppointment(tenantID, "a@x.com", "2024-01-01T09:00:00")
	require.NoError(t, store.Create(ctx, appt))

	endTime := "2024-01-01T10:15:00"
	status := appointment.StatusCancelled
	notes := "moved"

	updated, err := store.Update(ctx, tenantID, "a@x.com", "2024-01-01T09:00:00", appointment.Patch{
		EndTime: &endTime,
		Status:  &status,
		Notes:   &notes,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, endTime, updated.EndTime)
	assert.Equal(t, appointment.StatusCancelled, updated.Status)
	assert.Equal(t, "moved", updated.Notes)
	assert.Equal(t, appt.Location, updated.Location)
	assert.Equal(t, appt.CustomerName, updated.CustomerName)
	assert.Equal(t, appt.Phone, updated.Phone)

	result, err := store.QueryByDate(ctx, tenantID, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, *updated, result[0])
}

func TestUpdateDefaultsStatus(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantID := NewTenantID()

	require.NoError(t, store.Create(ctx, NewAppointment(tenantID, "a@x.com", "2024-01-01T09:00:00")))

	updated, err := store.Update(ctx, tenantID, "a@x.com", "2024-01-01T09:00:00", appointment.Patch{})
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, updated.Status)
}

func TestUpdateMissingRecord(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantID := NewTenantID()
	notes := "ghost"

	updated, err := store.Update(ctx, tenantID, "nobody@x.com", "2024-01-05T09:00:00", appointment.Patch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "nobody@x.com", updated.CustomerEmail)
	assert.Equal(t, "ghost", updated.Notes)
	assert.Equal(t, appointment.StatusPending, updated.Status)
	assert.Empty(t, updated.CustomerName)

	// The sparse record carries no date key, so it is not visible by date.
	result, err := store.QueryByDate(ctx, tenantID, "2024-01-05")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestDeleteIsIdempotent(t *testing.T, store appointment.Store) {
	ctx := context.Background()
	tenantID := NewTenantID()

	require.NoError(t, store.Create(ctx, NewAppointment(tenantID, "a@x.com", "2024-01-01T09:00:00")))
	require.NoError(t, store.Delete(ctx, tenantID, "a@x.com", "2024-01-01T09:00:00"))
	require.NoError(t, store.Delete(ctx, tenantID, "a@x.com", "2024-01-01T09:00:00"))
	require.NoError(t, store.Delete(ctx, tenantID, "never@x.com", "2024-01-01T09:00:00"))

	result, err := store.QueryByDate(ctx, tenantID, "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestMissingTenantID(t *testing.T, store appointment.Store) {
	ctx := context.Background()

	assert.ErrorIs(t, store.Create(ctx, NewAppointment("", "a@x.com", "2024-01-01T09:00:00")), appointment.ErrMissingTenantID)

	_, err := store.Update(ctx, "", "a@x.com", "2024-01-01T09:00:00", appointment.Patch{})
	assert.ErrorIs(t, err, appointment.ErrMissingTenantID)

	assert.ErrorIs(t, store.Delete(ctx, "", "a@x.com", "2024-01-01T09:00:00"), appointment.ErrMissingTenantID)

	_, err = store.QueryByDate(ctx, "", "2024-01-01")
	assert.ErrorIs(t, err, appointment.ErrMissingTenantID)
}
