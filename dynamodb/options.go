package dynamodb

import (
	"errors"
	"net/url"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithDateIndexName] or [WithEndpoint]) to customise the defaults.
type Options struct {
	dateIndexName string
	endpoint      string
	dynamoDBAPI   API
}

func newOptions() *Options {
	return &Options{
		dateIndexName: DefaultDateIndexName,
	}
}

func (o *Options) validate() error {
	if o.dateIndexName == "" {
		return errors.New("date index name cannot be empty")
	}

	if o.endpoint != "" {
		u, err := url.Parse(o.endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("endpoint must be an absolute URL")
		}
	}

	return nil
}

// WithDateIndexName sets the name of the Global Secondary Index that is
// queried by date. The default is [DefaultDateIndexName].
func WithDateIndexName(name string) Option {
	return func(o *Options) {
		o.dateIndexName = name
	}
}

// WithEndpoint overrides the DynamoDB endpoint, for example to point the
// client at DynamoDB Local. Ignored when [WithAPI] is used.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.endpoint = endpoint
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}
