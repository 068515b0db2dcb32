package appointment

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a [Service].
type Option func(*Options)

// Options holds the configuration for a [Service].
type Options struct {
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time
	newID    func() string
}

func newOptions() *Options {
	return &Options{
		logger: slog.New(slog.DiscardHandler),
		clock:  time.Now,
		newID:  uuid.NewString,
	}
}

// WithNotifier sets the [Notifier] that receives an [Event] after every
// successful create, update and delete. By default no events are published.
func WithNotifier(n Notifier) Option {
	return func(o *Options) {
		o.notifier = n
	}
}

// WithLogger sets the logger. Notification failures are logged here.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used to timestamp events. Defaults to [time.Now].
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithIDGenerator sets the function that generates event IDs. Defaults to
// random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(o *Options) {
		o.newID = fn
	}
}
