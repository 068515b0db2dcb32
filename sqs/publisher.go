package sqs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/jharbyjoel/appointment-app/appointment"
)

// SQS limits message group IDs to 128 characters.
const maxGroupIDLength = 128

// sqsClient is the subset of the SQS API used by the publisher.
// It is satisfied by *sqs.Client and can be mocked for testing.
type sqsClient interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ sqsClient = (*sqs.Client)(nil)

// Publisher sends appointment events to an SQS queue.
//
// Create a Publisher with [New], then call [Publisher.Init] once before
// publishing. Init is not thread-safe; Notify is safe for concurrent use
// after Init returns.
type Publisher struct {
	client      sqsClient
	queueURL    string
	fifo        bool
	awsCfg      *aws.Config
	opts        *Options
	logger      *slog.Logger
	initialized bool
}

var _ appointment.Notifier = (*Publisher)(nil)

// New creates a Publisher for the queue at queueURL. It does not connect to
// AWS.
func New(awsCfg *aws.Config, queueURL string, opts ...Option) *Publisher {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Publisher{
		awsCfg:   awsCfg,
		queueURL: queueURL,
		opts:     options,
		logger:   options.logger.With("notifier", "sqs", "queue_url", queueURL),
	}
}

// Init validates options, creates the SQS client and reads the queue
// attributes to find out whether the queue is FIFO. It returns the receiver
// so that initialization can be chained with [New].
//
// Init is idempotent.
func (p *Publisher) Init(ctx context.Context) (*Publisher, error) {
	if p.initialized {
		return p, nil
	}

	if p.queueURL == "" {
		return nil, errors.New("SQS queue URL cannot be empty")
	}

	if err := p.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	if p.opts.sqsClient != nil {
		p.client = p.opts.sqsClient
	} else {
		if p.awsCfg == nil {
			return nil, errors.New("AWS config cannot be nil")
		}

		p.client = sqs.NewFromConfig(*p.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, p.opts.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, p.opts.sqsAPIMaxRetryAttempts)
		})
	}

	resp, err := p.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameFifoQueue},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue attributes for %s: %w", p.queueURL, err)
	}

	p.fifo = resp.Attributes[string(sqstypes.QueueAttributeNameFifoQueue)] == "true"
	p.initialized = true

	p.logger.DebugContext(ctx, "SQS publisher initialized", "fifo", p.fifo)

	return p, nil
}

// FIFO reports whether the queue is a FIFO queue. Valid after Init.
func (p *Publisher) FIFO() bool {
	return p.fifo
}

// Notify sends the event as a JSON message.
func (p *Publisher) Notify(ctx context.Context, event *appointment.Event) error {
	if !p.initialized {
		return errors.New("SQS publisher not initialized")
	}

	if event == nil {
		return errors.New("event cannot be nil")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal appointment event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"eventType": stringAttribute(string(event.Type)),
			"tenantId":  stringAttribute(event.TenantID),
		},
	}

	if p.fifo {
		groupID, err := groupID(event)
		if err != nil {
			return err
		}

		input.MessageGroupId = aws.String(groupID)
		input.MessageDeduplicationId = aws.String(dedupID(event))
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}

	p.logger.DebugContext(ctx, "Appointment event sent to SQS",
		"event_id", event.ID,
		"event_type", event.Type,
		"message_id", aws.ToString(out.MessageId),
	)

	return nil
}

// groupID returns the customer key of the event's appointment, hashed when it
// is too long to be a message group ID.
func groupID(event *appointment.Event) (string, error) {
	key, err := appointment.CustomerKey(event.TenantID, event.Appointment.CustomerEmail)
	if err != nil {
		return "", fmt.Errorf("failed to build message group ID: %w", err)
	}

	if len(key) > maxGroupIDLength {
		return hash(key), nil
	}

	return key, nil
}

func dedupID(event *appointment.Event) string {
	return hash(event.ID, string(event.Type), event.Appointment.Key(), event.OccurredAt.UTC().Format(time.RFC3339Nano))
}

func stringAttribute(value string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(value),
	}
}

func hash(input ...string) string {
	h := sha256.New()

	for _, s := range input {
		h.Write([]byte(s))
		h.Write([]byte{0}) // null byte delimiter to prevent hash collisions
	}

	bs := h.Sum(nil)

	return base64.URLEncoding.EncodeToString(bs)
}
