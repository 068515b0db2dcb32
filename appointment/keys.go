package appointment

import (
	"errors"
	"strings"
)

const (
	tenantPrefix      = "TENANT#"
	customerSegment   = "#CUSTOMER#"
	dateSegment       = "#DATE#"
	appointmentPrefix = "APPOINTMENT#"

	// dateLength is the length of a YYYY-MM-DD date.
	dateLength = len("2006-01-02")
)

// ErrInvalidKey is returned by [CustomerKey] when a key component is empty or
// would break the delimiter scheme. It indicates a programming or
// configuration error rather than bad caller input.
var ErrInvalidKey = errors.New("invalid key component")

// CustomerKey builds the partition key TENANT#<tenantID>#CUSTOMER#<email>.
// The tenant ID must not contain '#', otherwise one tenant's keys could
// collide with another's.
func CustomerKey(tenantID, customerEmail string) (string, error) {
	if tenantID == "" {
		return "", errors.Join(ErrInvalidKey, errors.New("tenantID cannot be empty"))
	}

	if strings.Contains(tenantID, "#") {
		return "", errors.Join(ErrInvalidKey, errors.New("tenantID cannot contain '#'"))
	}

	if customerEmail == "" {
		return "", errors.Join(ErrInvalidKey, errors.New("customerEmail cannot be empty"))
	}

	return customerKey(tenantID, customerEmail), nil
}

// ValidateTenantID returns [ErrMissingTenantID] for an empty tenant ID and
// [ErrInvalidTenantID] for one containing '#'.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return ErrMissingTenantID
	}

	if strings.Contains(tenantID, "#") {
		return ErrInvalidTenantID
	}

	return nil
}

func customerKey(tenantID, customerEmail string) string {
	return tenantPrefix + tenantID + customerSegment + customerEmail
}

// AppointmentSortKey builds the sort key APPOINTMENT#<startTime>.
func AppointmentSortKey(startTime string) string {
	return appointmentPrefix + startTime
}

// TenantDateKey builds the date index key TENANT#<tenantID>#DATE#<date>. The
// date is used as given.
func TenantDateKey(tenantID, date string) string {
	return tenantPrefix + tenantID + dateSegment + date
}

// AppointmentDate returns the date portion of a start time.
func AppointmentDate(startTime string) string {
	if len(startTime) < dateLength {
		return startTime
	}

	return startTime[:dateLength]
}

// StartTimeFromSortKey strips the APPOINTMENT# prefix from a sort key. The
// second return value is false if sk is not an appointment sort key.
func StartTimeFromSortKey(sk string) (string, bool) {
	return strings.CutPrefix(sk, appointmentPrefix)
}
