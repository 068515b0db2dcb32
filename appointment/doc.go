// Package appointment holds the domain model of the booking service: the
// [Appointment] record, the storage key scheme, caller-input errors, and the
// [Service] that validates requests before handing them to a [Store].
//
// # Key scheme
//
// All tenants share one logical table. Every appointment lives at
//
//	PK: TENANT#<tenantId>#CUSTOMER#<customerEmail>
//	SK: APPOINTMENT#<startTime>
//
// and is also indexed by day:
//
//	tenantDateKey: TENANT#<tenantId>#DATE#<YYYY-MM-DD>
//
// The date index shares the SK as its sort key, so a day's appointments come
// back ordered by start time.
//
// # Write semantics
//
// Create is an upsert: a second create for the same tenant, customer and start
// time silently replaces the first. Update performs no existence check, so
// patching a key that does not exist yields a sparse record holding only the
// key and the patched fields. Delete is idempotent.
package appointment
