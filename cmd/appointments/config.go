package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
)

// Notification backends.
const (
	NotifyNone   = "none"
	NotifySQS    = "sqs"
	NotifyPubSub = "pubsub"
)

// Config holds everything the binary reads from the environment. It is loaded
// once at startup and treated as immutable.
type Config struct {
	// Storage
	Store         string
	TableName     string
	DateIndexName string

	// DynamoDB
	AWSRegion        string
	DynamoDBEndpoint string

	// Postgres
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDatabase string
	PostgresSSLMode  string

	SkipSchemaValidation bool

	// Notifications
	NotifyBackend   string
	SQSQueueURL     string
	PubSubProjectID string
	PubSubTopic     string
	PubSubOrdered   bool

	// Server
	ServerPort      string
	ShutdownTimeout time.Duration

	// Rate limit
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Roster
	RosterMaxConcurrency int

	// Logging and tracing
	LogLevel          slog.Level
	TracingEnabled    bool
	TracingService    string
	TracingSampleRate float64

	// Client
	APIBaseURL string
}

// Load reads the configuration needed by cmd from the environment, falling
// back to an optional .env file in the working directory. Missing required
// variables are reported together.
func Load(cmd Command) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine; the environment may carry everything.
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	setDefaults(v)

	return load(v, cmd)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APPOINTMENTS_STORE", StoreDynamoDB)
	v.SetDefault("APPOINTMENTS_TABLE_NAME", "appointments")
	v.SetDefault("APPOINTMENTS_DATE_INDEX_NAME", "DateIndex")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_SSL_MODE", "prefer")
	v.SetDefault("SKIP_SCHEMA_VALIDATION", false)
	v.SetDefault("NOTIFY_BACKEND", NotifyNone)
	v.SetDefault("PUBSUB_ORDERED", true)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_PER_SECOND", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("ROSTER_MAX_CONCURRENCY", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "appointments")
	v.SetDefault("OTEL_SAMPLING_RATE", 1.0)
}

func load(v *viper.Viper, cmd Command) (*Config, error) {
	cfg := &Config{
		Store:                v.GetString("APPOINTMENTS_STORE"),
		TableName:            v.GetString("APPOINTMENTS_TABLE_NAME"),
		DateIndexName:        v.GetString("APPOINTMENTS_DATE_INDEX_NAME"),
		AWSRegion:            v.GetString("AWS_REGION"),
		DynamoDBEndpoint:     v.GetString("DYNAMODB_ENDPOINT"),
		PostgresHost:         v.GetString("POSTGRES_HOST"),
		PostgresPort:         v.GetInt("POSTGRES_PORT"),
		PostgresUser:         v.GetString("POSTGRES_USER"),
		PostgresPassword:     v.GetString("POSTGRES_PASSWORD"),
		PostgresDatabase:     v.GetString("POSTGRES_DATABASE"),
		PostgresSSLMode:      v.GetString("POSTGRES_SSL_MODE"),
		SkipSchemaValidation: v.GetBool("SKIP_SCHEMA_VALIDATION"),
		NotifyBackend:        v.GetString("NOTIFY_BACKEND"),
		SQSQueueURL:          v.GetString("SQS_QUEUE_URL"),
		PubSubProjectID:      v.GetString("PUBSUB_PROJECT_ID"),
		PubSubTopic:          v.GetString("PUBSUB_TOPIC"),
		PubSubOrdered:        v.GetBool("PUBSUB_ORDERED"),
		ServerPort:           v.GetString("SERVER_PORT"),
		ShutdownTimeout:      v.GetDuration("SHUTDOWN_TIMEOUT"),
		RateLimitPerSecond:   v.GetFloat64("RATE_LIMIT_PER_SECOND"),
		RateLimitBurst:       v.GetInt("RATE_LIMIT_BURST"),
		RosterMaxConcurrency: v.GetInt("ROSTER_MAX_CONCURRENCY"),
		TracingEnabled:       v.GetBool("OTEL_ENABLED"),
		TracingService:       v.GetString("OTEL_SERVICE_NAME"),
		TracingSampleRate:    v.GetFloat64("OTEL_SAMPLING_RATE"),
		APIBaseURL:           v.GetString("API_BASE_URL"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v.GetString("LOG_LEVEL")))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	var missing []string

	switch cmd {
	case CommandServe:
		switch cfg.Store {
		case StoreDynamoDB:
			if cfg.AWSRegion == "" {
				missing = append(missing, "AWS_REGION")
			}
		case StorePostgres:
			if cfg.PostgresUser == "" {
				missing = append(missing, "POSTGRES_USER")
			}

			if cfg.PostgresDatabase == "" {
				missing = append(missing, "POSTGRES_DATABASE")
			}
		default:
			return nil, fmt.Errorf("unsupported APPOINTMENTS_STORE %q", cfg.Store)
		}

		switch cfg.NotifyBackend {
		case NotifyNone:
		case NotifySQS:
			if cfg.SQSQueueURL == "" {
				missing = append(missing, "SQS_QUEUE_URL")
			}

			if cfg.AWSRegion == "" && cfg.Store != StoreDynamoDB {
				missing = append(missing, "AWS_REGION")
			}
		case NotifyPubSub:
			if cfg.PubSubProjectID == "" {
				missing = append(missing, "PUBSUB_PROJECT_ID")
			}

			if cfg.PubSubTopic == "" {
				missing = append(missing, "PUBSUB_TOPIC")
			}
		default:
			return nil, fmt.Errorf("unsupported NOTIFY_BACKEND %q", cfg.NotifyBackend)
		}
	case CommandCustomers:
		if cfg.APIBaseURL == "" {
			missing = append(missing, "API_BASE_URL")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks numeric ranges.
func (c *Config) Validate() error {
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got %v", c.RateLimitPerSecond)
	}

	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got %d", c.RateLimitBurst)
	}

	if c.RosterMaxConcurrency < 1 {
		return fmt.Errorf("ROSTER_MAX_CONCURRENCY must be at least 1, got %d", c.RosterMaxConcurrency)
	}

	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("invalid POSTGRES_PORT: %d", c.PostgresPort)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}

	return nil
}
