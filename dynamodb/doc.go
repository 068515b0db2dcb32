// Package dynamodb provides a DynamoDB-backed implementation of the
// [appointment.Store] interface.
//
// # Overview
//
// The package uses a single-table design shared by all tenants. Every
// appointment is keyed by its customer (partition key, "PK") and its start
// time (sort key, "SK"):
//
//	PK: TENANT#<tenantId>#CUSTOMER#<customerEmail>
//	SK: APPOINTMENT#<startTime>
//
// A Global Secondary Index (default name [DefaultDateIndexName]) with
// partition key "tenantDateKey" and sort key "SK" returns one tenant's
// appointments for a single day, ordered by start time.
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB table
// name, and any [Option] values you need:
//
//	client := dynamodb.New(&awsCfg, tableName,
//	    dynamodb.WithDateIndexName("DateIndex"),
//	    dynamodb.WithEndpoint("http://localhost:8000"),
//	)
//	if err := client.Connect(); err != nil { ... }
//	if err := client.Init(ctx, false); err != nil { ... }
//
// By default, [Client.Connect] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # Write semantics
//
// [Client.Create] is a plain PutItem, so it silently replaces an existing
// appointment with the same key. [Client.Update] is an UpdateItem without a
// condition expression; on a missing key DynamoDB creates a sparse item that
// holds only the key and the patched attributes. [Client.Delete] succeeds
// whether or not the item exists.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines.
package dynamodb
