package appointment

import (
	"regexp"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CreateInput is the body of a create request. Every field except Location is
// required.
type CreateInput struct {
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
	Phone         string `json:"phone"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	Status        Status `json:"status"`
	Notes         string `json:"notes"`
	Location      string `json:"location,omitempty"`
}

// UpdateInput is the body of an edit request. CustomerEmail and StartTime
// identify the appointment; the remaining fields form the [Patch].
type UpdateInput struct {
	CustomerEmail string  `json:"customerEmail"`
	StartTime     string  `json:"startTime"`
	EndTime       *string `json:"endTime,omitempty"`
	Status        *Status `json:"status,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	Location      *string `json:"location,omitempty"`
}

// DeleteInput is the body of a delete request.
type DeleteInput struct {
	CustomerEmail string `json:"customerEmail"`
	StartTime     string `json:"startTime"`
}

// Validate checks the create rules: required fields first, then email shape,
// status and time ordering.
func (in *CreateInput) Validate() error {
	if in.CustomerEmail == "" || in.CustomerName == "" || in.Phone == "" ||
		in.StartTime == "" || in.EndTime == "" || in.Status == "" || in.Notes == "" {
		return ErrMissingRequiredFields
	}

	if !emailPattern.MatchString(in.CustomerEmail) {
		return ErrInvalidEmail
	}

	if !in.Status.Valid() {
		return ErrInvalidStatus
	}

	if in.EndTime <= in.StartTime {
		return ErrInvalidTimeRange
	}

	return nil
}

// Appointment converts the input into the record stored for tenantID.
func (in *CreateInput) Appointment(tenantID string) *Appointment {
	return &Appointment{
		TenantID:        tenantID,
		CustomerEmail:   in.CustomerEmail,
		CustomerName:    in.CustomerName,
		Phone:           in.Phone,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		AppointmentDate: AppointmentDate(in.StartTime),
		Status:          in.Status,
		Notes:           in.Notes,
		Location:        in.Location,
	}
}

// Validate checks the edit rules.
func (in *UpdateInput) Validate() error {
	if in.CustomerEmail == "" || in.StartTime == "" {
		return ErrMissingRequiredFields
	}

	if in.Status != nil && *in.Status != "" && !in.Status.Valid() {
		return ErrInvalidStatus
	}

	if in.EndTime != nil && *in.EndTime <= in.StartTime {
		return ErrInvalidTimeRange
	}

	return nil
}

// Patch returns the fields of the input that the update applies.
func (in *UpdateInput) Patch() Patch {
	return Patch{
		EndTime:  in.EndTime,
		Status:   in.Status,
		Notes:    in.Notes,
		Location: in.Location,
	}
}

// Validate checks the delete rules.
func (in *DeleteInput) Validate() error {
	if in.CustomerEmail == "" || in.StartTime == "" {
		return ErrMissingRequiredFields
	}

	return nil
}

// ValidDate reports whether date is a real calendar date in YYYY-MM-DD form.
func ValidDate(date string) bool {
	if len(date) != dateLength {
		return false
	}

	_, err := time.Parse(time.DateOnly, date)

	return err == nil
}
