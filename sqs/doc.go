// Package sqs publishes appointment change events to an Amazon SQS queue.
//
// [Publisher] implements [appointment.Notifier]. Each event is sent as one
// JSON message carrying "eventType" and "tenantId" message attributes.
//
// Both FIFO and standard queues are supported. The queue type is read from
// the queue attributes by [Publisher.Init]. For FIFO queues the message group
// ID is the customer key, so events for one customer are delivered in order,
// and the deduplication ID is a SHA-256 hash of the event identity, so a
// retried publish of the same event is dropped by SQS.
//
//	publisher, err := sqs.New(&awsCfg, queueURL,
//	    sqs.WithLogger(logger),
//	).Init(ctx)
//
//	svc := appointment.NewService(store, appointment.WithNotifier(publisher))
package sqs
