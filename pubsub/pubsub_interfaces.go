package pubsub

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub/v2"
)

// pubsubClient abstracts *pubsub.Client for testing.
type pubsubClient interface {
	Publisher(topic string) pubsubPublisher
}

// pubsubPublisher abstracts *pubsub.Publisher for testing.
type pubsubPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) pubsubPublishResult
	ResumePublish(orderingKey string)
	Stop()
	SetEnableMessageOrdering(enabled bool)
	SetDelayThreshold(d time.Duration)
	SetCountThreshold(n int)
	SetByteThreshold(n int)
}

// pubsubPublishResult abstracts *pubsub.PublishResult for testing.
type pubsubPublishResult interface {
	Get(ctx context.Context) (serverID string, err error)
}
