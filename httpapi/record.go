package httpapi

import (
	"github.com/jharbyjoel/appointment-app/appointment"
	"github.com/jharbyjoel/appointment-app/roster"
)

// record is an appointment as returned to clients: the stored fields plus the
// table keys. Clients dedupe on PK#SK.
type record struct {
	PK            string `json:"PK"`
	SK            string `json:"SK"`
	TenantDateKey string `json:"tenantDateKey,omitempty"`
	appointment.Appointment
}

func newRecord(a *appointment.Appointment) record {
	return record{
		PK:            a.PartitionKey(),
		SK:            a.SortKey(),
		TenantDateKey: a.DateKey(),
		Appointment:   *a,
	}
}

func newRecords(appts []appointment.Appointment) []record {
	records := make([]record, 0, len(appts))
	for i := range appts {
		records = append(records, newRecord(&appts[i]))
	}
	return records
}

// queryResult mirrors the shape of a table query response.
type queryResult struct {
	Items []record `json:"Items"`
	Count int      `json:"Count"`
}

// deletedKey identifies a deleted appointment.
type deletedKey struct {
	PK string `json:"PK"`
	SK string `json:"SK"`
}

type customersResult struct {
	Customers   []roster.Customer `json:"customers"`
	Partial     bool              `json:"partial"`
	FailedDates []string          `json:"failedDates"`
}
