package roster

import (
	"slices"
	"strings"

	"github.com/jharbyjoel/appointment-app/appointment"
)

// Customer is one entry of a roster. It is derived from appointments and
// never stored.
type Customer struct {
	CustomerEmail    string `json:"customerEmail"`
	CustomerName     string `json:"customerName"`
	Phone            string `json:"phone"`
	AppointmentCount int    `json:"appointmentCount"`
	LastAppointment  string `json:"lastAppointment"`
}

// DeriveCustomers reduces appointments to one entry per customer email. Name
// and phone come from the first appointment seen for the email. The result is
// sorted by LastAppointment, most recent first; ties keep first-seen order.
func DeriveCustomers(appts []appointment.Appointment) []Customer {
	index := make(map[string]int)
	customers := []Customer{}

	for _, appt := range appts {
		i, ok := index[appt.CustomerEmail]
		if !ok {
			index[appt.CustomerEmail] = len(customers)
			customers = append(customers, Customer{
				CustomerEmail:    appt.CustomerEmail,
				CustomerName:     appt.CustomerName,
				Phone:            appt.Phone,
				AppointmentCount: 1,
				LastAppointment:  appt.StartTime,
			})
			continue
		}

		c := &customers[i]
		c.AppointmentCount++

		if appt.StartTime > c.LastAppointment {
			c.LastAppointment = appt.StartTime
		}
	}

	slices.SortStableFunc(customers, func(a, b Customer) int {
		return strings.Compare(b.LastAppointment, a.LastAppointment)
	})

	return customers
}

// FilterCustomers returns the customers whose name, email or phone contains
// query, ignoring case. An empty query returns customers unchanged.
func FilterCustomers(customers []Customer, query string) []Customer {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return customers
	}

	filtered := []Customer{}

	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.CustomerName), query) ||
			strings.Contains(strings.ToLower(c.CustomerEmail), query) ||
			strings.Contains(strings.ToLower(c.Phone), query) {
			filtered = append(filtered, c)
		}
	}

	return filtered
}
