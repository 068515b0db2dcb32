package appointment

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Appointment is the only persisted entity. Timestamps are kept in their
// sortable string form (YYYY-MM-DDTHH:MM:SS) and never parsed, so lexical
// order is chronological order.
type Appointment struct {
	TenantID        string `json:"tenantId"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerName    string `json:"customerName"`
	Phone           string `json:"phone"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	AppointmentDate string `json:"appointmentDate"`
	Status          Status `json:"status"`
	Notes           string `json:"notes"`
	Location        string `json:"location,omitempty"`
}

// Key returns the composite primary key of the appointment (PK#SK). Two
// records with the same Key are the same appointment.
func (a *Appointment) Key() string {
	return a.PartitionKey() + "#" + a.SortKey()
}

// PartitionKey returns the customer partition key of the appointment.
func (a *Appointment) PartitionKey() string {
	return customerKey(a.TenantID, a.CustomerEmail)
}

// SortKey returns the appointment sort key.
func (a *Appointment) SortKey() string {
	return AppointmentSortKey(a.StartTime)
}

// DateKey returns the date index key, or "" for a record without an
// appointment date. Such records are not visible to date queries.
func (a *Appointment) DateKey() string {
	if a.AppointmentDate == "" {
		return ""
	}

	return TenantDateKey(a.TenantID, a.AppointmentDate)
}

// Patch lists the fields an update may change. A nil field is left out of the
// update, except Status which falls back to [StatusPending].
type Patch struct {
	EndTime  *string
	Status   *Status
	Notes    *string
	Location *string
}

// StatusOrDefault returns the patched status, or [StatusPending] when none was
// given.
func (p Patch) StatusOrDefault() Status {
	if p.Status == nil || *p.Status == "" {
		return StatusPending
	}

	return *p.Status
}
