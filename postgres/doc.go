// Package postgres provides a PostgreSQL-backed implementation of the
// [appointment.Store] interface.
//
// It uses pgx v5 with connection pooling (pgxpool). Each appointment is one
// row keyed by the same composite keys the DynamoDB store uses, with the full
// record held in a JSONB column.
//
// # Usage
//
// Create a client using [New] with functional options, call [Client.Connect]
// to establish the connection pool, and then [Client.Init] to create the
// database schema:
//
//	client := postgres.New(
//	    postgres.WithHost("localhost"),
//	    postgres.WithUser("postgres"),
//	    postgres.WithPassword("secret"),
//	    postgres.WithDatabase("appointments"),
//	)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	if err := client.Init(ctx, false); err != nil {
//	    log.Fatal(err)
//	}
//
// # Table
//
// [Client.Init] creates one table (name configurable via
// [WithAppointmentsTable]):
//
//	pk              text      TENANT#<tenant>#CUSTOMER#<email>
//	sk              text      APPOINTMENT#<startTime>
//	version         smallint
//	tenant_date_key text NULL TENANT#<tenant>#DATE#<date>
//	attrs           jsonb     the appointment
//
// with primary key (pk, sk) and a partial index on (tenant_date_key, sk).
// Rows created by an update of a missing key have no tenant_date_key and are
// therefore not returned by date queries.
//
// # Schema Validation
//
// When [Client.Init] is called with skipSchemaValidation set to false, it
// queries information_schema.columns and verifies that every expected column
// exists with the correct data type and nullability.
package postgres
