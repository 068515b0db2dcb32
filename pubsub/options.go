package pubsub

import (
	"errors"
	"log/slog"
	"time"
)

type Option func(*Options)

type Options struct {
	publisherDelayThreshold time.Duration
	publisherCountThreshold int
	publisherByteThreshold  int
	ordered                 bool
	logger                  *slog.Logger
	pubsubClient            pubsubClient
}

func newOptions() *Options {
	return &Options{
		publisherDelayThreshold: 10 * time.Millisecond,
		publisherCountThreshold: 100,
		publisherByteThreshold:  1e6, // 1 MB
		logger:                  slog.New(slog.DiscardHandler),
	}
}

func (o *Options) validate() error {
	if o.publisherDelayThreshold < 0 {
		return errors.New("publisher delay threshold must be non-negative")
	}

	if o.publisherCountThreshold <= 0 {
		return errors.New("publisher count threshold must be greater than zero")
	}

	if o.publisherByteThreshold <= 0 {
		return errors.New("publisher byte threshold must be greater than zero")
	}

	return nil
}

func WithPublisherDelayThreshold(d time.Duration) Option {
	return func(o *Options) {
		o.publisherDelayThreshold = d
	}
}

func WithPublisherCountThreshold(n int) Option {
	return func(o *Options) {
		o.publisherCountThreshold = n
	}
}

func WithPublisherByteThreshold(n int) Option {
	return func(o *Options) {
		o.publisherByteThreshold = n
	}
}

// WithOrdering enables message ordering. Events are then published with the
// customer key as ordering key. The subscription must have ordering enabled
// for the order to be observed.
func WithOrdering(enabled bool) Option {
	return func(o *Options) {
		o.ordered = enabled
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPubSubClient sets a custom pubsubClient implementation for testing.
func WithPubSubClient(client pubsubClient) Option {
	return func(o *Options) {
		o.pubsubClient = client
	}
}
