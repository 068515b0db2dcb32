package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gpubsub "cloud.google.com/go/pubsub/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/jharbyjoel/appointment-app/apiclient"
	"github.com/jharbyjoel/appointment-app/appointment"
	"github.com/jharbyjoel/appointment-app/dynamodb"
	"github.com/jharbyjoel/appointment-app/httpapi"
	"github.com/jharbyjoel/appointment-app/postgres"
	"github.com/jharbyjoel/appointment-app/pubsub"
	"github.com/jharbyjoel/appointment-app/roster"
	"github.com/jharbyjoel/appointment-app/sqs"
	"github.com/jharbyjoel/appointment-app/telemetry"
)

// closer releases a backend on shutdown.
type closer func(ctx context.Context) error

// Run parses the subcommand from args (os.Args[1:]), loads the configuration
// and runs the command. Logs go to logOut and command output to out.
func Run(ctx context.Context, logOut, out io.Writer, args []string) error {
	cmd := ParseCommand(args)

	cfg, err := Load(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(logOut, cfg.LogLevel)
	slog.SetDefault(logger)

	var rest []string
	if len(args) > 0 {
		rest = args[1:]
	}

	switch cmd {
	case CommandCustomers:
		return runCustomers(ctx, cfg, logger, out, rest)
	case CommandHealthcheck:
		return runHealthcheck(ctx, cfg.ServerPort)
	default:
		return runServe(ctx, cfg, logger)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(telemetry.NewTraceContextHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// runServe wires storage, notifications and the HTTP API, then serves until
// SIGINT or SIGTERM and shuts down gracefully.
func runServe(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	logger.Info("Starting appointments API",
		slog.String("store", cfg.Store),
		slog.String("notify_backend", cfg.NotifyBackend),
		slog.String("port", cfg.ServerPort),
	)

	tracing, err := telemetry.New(ctx, telemetry.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  cfg.TracingService,
		SamplingRate: cfg.TracingSampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down tracing", slog.Any("error", err))
		}
	}()

	var awsCfg *aws.Config

	if cfg.Store == StoreDynamoDB || cfg.NotifyBackend == NotifySQS {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}

		awsCfg = &loaded
	}

	store, closeStore, err := openStore(ctx, cfg, awsCfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := closeStore(context.Background()); err != nil {
			logger.Error("Failed to close store", slog.Any("error", err))
		}
	}()

	logger.Info("Store ready", slog.String("table", cfg.TableName))

	serviceOpts := []appointment.Option{appointment.WithLogger(logger)}

	notifier, closeNotifier, err := openNotifier(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := closeNotifier(context.Background()); err != nil {
			logger.Error("Failed to close notifier", slog.Any("error", err))
		}
	}()

	if notifier != nil {
		serviceOpts = append(serviceOpts, appointment.WithNotifier(notifier))
	}

	service := appointment.NewService(store, serviceOpts...)

	aggregator, err := roster.NewAggregator(service,
		roster.WithMaxConcurrentQueries(cfg.RosterMaxConcurrency),
		roster.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create roster aggregator: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics := httpapi.NewMetrics(registry)

	limiter := httpapi.NewRateLimiter(httpapi.RateLimiterConfig{
		Rate:            rate.Limit(cfg.RateLimitPerSecond),
		Burst:           cfg.RateLimitBurst,
		CleanupInterval: httpapi.DefaultRateLimiterConfig().CleanupInterval,
	}, metrics, logger)
	defer limiter.Stop()

	router := httpapi.NewRouter(&httpapi.RouterDeps{
		Service:     service,
		Roster:      aggregator,
		Logger:      logger,
		RateLimiter: limiter,
		Metrics:     metrics,
		Gatherer:    registry,

		TracerProvider: tracing.Provider(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)

	go func() {
		logger.Info("API server starting", slog.String("addr", server.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("API server stopped gracefully")

	return nil
}

func openStore(ctx context.Context, cfg *Config, awsCfg *aws.Config) (appointment.Store, closer, error) {
	switch cfg.Store {
	case StorePostgres:
		client := postgres.New(
			postgres.WithHost(cfg.PostgresHost),
			postgres.WithPort(cfg.PostgresPort),
			postgres.WithUser(cfg.PostgresUser),
			postgres.WithPassword(cfg.PostgresPassword),
			postgres.WithDatabase(cfg.PostgresDatabase),
			postgres.WithSSLMode(postgres.SSLMode(cfg.PostgresSSLMode)),
			postgres.WithAppointmentsTable(cfg.TableName),
		)

		if err := client.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}

		if err := client.Init(ctx, cfg.SkipSchemaValidation); err != nil {
			_ = client.Close(ctx)
			return nil, nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}

		return client, client.Close, nil
	default:
		opts := []dynamodb.Option{dynamodb.WithDateIndexName(cfg.DateIndexName)}

		if cfg.DynamoDBEndpoint != "" {
			opts = append(opts, dynamodb.WithEndpoint(cfg.DynamoDBEndpoint))
		}

		client := dynamodb.New(awsCfg, cfg.TableName, opts...)

		if err := client.Connect(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to DynamoDB: %w", err)
		}

		if err := client.Init(ctx, cfg.SkipSchemaValidation); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize DynamoDB store: %w", err)
		}

		return client, func(context.Context) error { return nil }, nil
	}
}

// openNotifier returns a nil Notifier when notifications are disabled.
func openNotifier(ctx context.Context, cfg *Config, awsCfg *aws.Config, logger *slog.Logger) (appointment.Notifier, closer, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.NotifyBackend {
	case NotifySQS:
		publisher, err := sqs.New(awsCfg, cfg.SQSQueueURL, sqs.WithLogger(logger)).Init(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQS notifier: %w", err)
		}

		logger.Info("SQS notifier ready", slog.Bool("fifo", publisher.FIFO()))

		return publisher, noop, nil
	case NotifyPubSub:
		client, err := gpubsub.NewClient(ctx, cfg.PubSubProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
		}

		publisher, err := pubsub.NewPublisher(client, pubsub.TopicName(cfg.PubSubProjectID, cfg.PubSubTopic),
			pubsub.WithOrdering(cfg.PubSubOrdered),
			pubsub.WithLogger(logger),
		).Init(ctx)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to initialize Pub/Sub notifier: %w", err)
		}

		logger.Info("Pub/Sub notifier ready", slog.Bool("ordered", cfg.PubSubOrdered))

		return publisher, func(context.Context) error {
			publisher.Close()
			return client.Close()
		}, nil
	default:
		return nil, noop, nil
	}
}

// runCustomers fetches a date range from a running API and prints the derived
// customer list as JSON.
func runCustomers(ctx context.Context, cfg *Config, logger *slog.Logger, out io.Writer, args []string) error {
	opts, err := parseCustomersFlags(args, time.Now())
	if err != nil {
		return err
	}

	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	aggregator, err := roster.NewAggregator(client,
		roster.WithMaxConcurrentQueries(cfg.RosterMaxConcurrency),
		roster.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create roster aggregator: %w", err)
	}

	result, err := aggregator.Fetch(ctx, opts.tenantID, opts.start, opts.end)
	if err != nil {
		return fmt.Errorf("failed to fetch appointments: %w", err)
	}

	if result.Partial() {
		logger.Warn("Some days could not be fetched", slog.Any("failed_dates", result.FailedDates()))
	}

	customers := roster.FilterCustomers(roster.DeriveCustomers(result.Appointments), opts.query)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(customers); err != nil {
		return fmt.Errorf("failed to write customers: %w", err)
	}

	return nil
}

type customersOptions struct {
	tenantID string
	start    string
	end      string
	query    string
}

func parseCustomersFlags(args []string, now time.Time) (*customersOptions, error) {
	window := roster.DefaultWindow(now)

	opts := &customersOptions{}

	fs := flag.NewFlagSet("customers", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.tenantID, "tenant", "", "tenant ID (required)")
	fs.StringVar(&opts.start, "start", window.Start, "first date, YYYY-MM-DD")
	fs.StringVar(&opts.end, "end", window.End, "last date, YYYY-MM-DD")
	fs.StringVar(&opts.query, "q", "", "filter by name, email or phone")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("invalid customers flags: %w", err)
	}

	if opts.tenantID == "" {
		return nil, errors.New("customers: -tenant is required")
	}

	return opts, nil
}

// runHealthcheck probes the local server's /healthz endpoint and fails unless
// it answers 200.
func runHealthcheck(ctx context.Context, port string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:"+port+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to build healthcheck request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck failed: status %d", resp.StatusCode)
	}

	return nil
}
