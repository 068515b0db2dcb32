// Package pubsub publishes appointment change events to a Google Cloud
// Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/pubsub/v2"
	"github.com/jharbyjoel/appointment-app/appointment"
)

// topicNameRegex validates Pub/Sub topic resource names.
// Project IDs may contain colons for domain-prefixed projects (e.g., google.com:my-project).
var topicNameRegex = regexp.MustCompile(`^projects\/([a-z][a-z0-9-:.]{5,29})\/topics\/([a-zA-Z][\w._-]{2,254})$`)

// TopicName returns the resource name of topic in project.
func TopicName(projectID, topic string) string {
	return "projects/" + projectID + "/topics/" + topic
}

// Publisher publishes appointment events to one topic. It implements
// [appointment.Notifier].
type Publisher struct {
	gcpClient *pubsub.Client
	client    pubsubClient
	topic     string

	// Created on first publish and stopped by Close.
	publisher     pubsubPublisher
	publisherLock sync.RWMutex

	opts        *Options
	logger      *slog.Logger
	initialized atomic.Bool
}

var _ appointment.Notifier = (*Publisher)(nil)

func NewPublisher(c *pubsub.Client, topic string, opts ...Option) *Publisher {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Publisher{
		gcpClient: c,
		topic:     topic,
		opts:      options,
		logger:    options.logger.With("notifier", "pubsub", "topic", topic),
	}
}

func (p *Publisher) Init(_ context.Context) (*Publisher, error) {
	if p.initialized.Load() {
		return p, nil
	}

	if !topicNameRegex.MatchString(p.topic) {
		return nil, fmt.Errorf("invalid pub/sub topic name %q", p.topic)
	}

	if err := p.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid pub/sub publisher options: %w", err)
	}

	// Use injected client for testing, otherwise wrap the real GCP client.
	if p.opts.pubsubClient != nil {
		p.client = p.opts.pubsubClient
	} else {
		if p.gcpClient == nil {
			return nil, errors.New("pub/sub client cannot be nil")
		}

		p.client = newRealPubSubClient(p.gcpClient)
	}

	p.initialized.Store(true)

	return p, nil
}

// Close stops the publisher, flushing any pending messages.
func (p *Publisher) Close() {
	p.publisherLock.Lock()
	defer p.publisherLock.Unlock()

	if p.publisher != nil {
		p.publisher.Stop()
		p.publisher = nil
	}
}

// Notify publishes the event and waits for the server to acknowledge it.
func (p *Publisher) Notify(ctx context.Context, event *appointment.Event) error {
	if !p.initialized.Load() {
		return errors.New("pub/sub publisher not initialized")
	}

	if event == nil {
		return errors.New("event cannot be nil")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal appointment event: %w", err)
	}

	msg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"eventType": string(event.Type),
			"tenantId":  event.TenantID,
		},
	}

	if p.opts.ordered {
		key, err := appointment.CustomerKey(event.TenantID, event.Appointment.CustomerEmail)
		if err != nil {
			return fmt.Errorf("failed to build ordering key: %w", err)
		}

		msg.OrderingKey = key
	}

	publisher := p.getPublisher()

	serverID, err := publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		// A failed publish pauses its ordering key until resumed.
		if msg.OrderingKey != "" {
			publisher.ResumePublish(msg.OrderingKey)
		}

		return fmt.Errorf("failed to publish message to pub/sub topic %s: %w", p.topic, err)
	}

	p.logger.DebugContext(ctx, "Appointment event published to pub/sub",
		"event_id", event.ID,
		"event_type", event.Type,
		"server_id", serverID,
		"ordering_key", msg.OrderingKey,
	)

	return nil
}

//nolint:ireturn // Returns interface for dependency injection pattern
func (p *Publisher) getPublisher() pubsubPublisher {
	// Fast path: read lock
	p.publisherLock.RLock()
	publisher := p.publisher
	p.publisherLock.RUnlock()

	if publisher != nil {
		return publisher
	}

	p.publisherLock.Lock()
	defer p.publisherLock.Unlock()

	if p.publisher != nil {
		return p.publisher
	}

	publisher = p.client.Publisher(p.topic)
	publisher.SetEnableMessageOrdering(p.opts.ordered)
	publisher.SetDelayThreshold(p.opts.publisherDelayThreshold)
	publisher.SetCountThreshold(p.opts.publisherCountThreshold)
	publisher.SetByteThreshold(p.opts.publisherByteThreshold)

	p.publisher = publisher

	return publisher
}
