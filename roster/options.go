package roster

import (
	"errors"
	"log/slog"
)

// Option is a functional option for configuring an [Aggregator].
type Option func(*Options)

// Options holds the configuration for an [Aggregator].
type Options struct {
	maxConcurrentQueries int
	maxDays              int
	logger               *slog.Logger
}

func newOptions() *Options {
	return &Options{
		maxConcurrentQueries: 10,
		maxDays:              366,
		logger:               slog.New(slog.DiscardHandler),
	}
}

func (o *Options) validate() error {
	if o.maxConcurrentQueries < 1 {
		return errors.New("max concurrent queries must be at least 1")
	}

	if o.maxDays < 1 {
		return errors.New("max days must be at least 1")
	}

	return nil
}

// WithMaxConcurrentQueries limits how many per-day queries run at the same
// time. The default is 10.
func WithMaxConcurrentQueries(n int) Option {
	return func(o *Options) {
		o.maxConcurrentQueries = n
	}
}

// WithMaxDays limits the number of days one range may span. The default is
// 366.
func WithMaxDays(n int) Option {
	return func(o *Options) {
		o.maxDays = n
	}
}

// WithLogger sets the logger that records failed days.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}
