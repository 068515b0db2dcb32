//nolint:paralleltest,testpackage // Tests need access to unexported functions
package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jharbyjoel/appointment-app/appointment"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789/appointments.fifo"

func testEvent() *appointment.Event {
	return &appointment.Event{
		ID:       "evt-1",
		Type:     appointment.EventCreated,
		Subject:  appointment.EventCreated.Subject(),
		TenantID: "acme",
		Appointment: appointment.Appointment{
			TenantID:      "acme",
			CustomerEmail: "jane@example.com",
			StartTime:     "2025-03-10T09:00:00",
			Status:        appointment.StatusConfirmed,
		},
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func initPublisher(t *testing.T, mock *mockSQSClient) *Publisher {
	t.Helper()

	p, err := New(&aws.Config{}, testQueueURL, WithSQSClient(mock)).Init(t.Context())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	return p
}

func TestInit_DetectsFifoQueue(t *testing.T) {
	var requested *sqs.GetQueueAttributesInput

	mock := &mockSQSClient{
		getQueueAttributesFunc: func(_ context.Context, input *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
			requested = input
			return &sqs.GetQueueAttributesOutput{Attributes: map[string]string{"FifoQueue": "true"}}, nil
		},
	}

	p := initPublisher(t, mock)

	if !p.FIFO() {
		t.Error("expected FIFO queue to be detected")
	}

	if aws.ToString(requested.QueueUrl) != testQueueURL {
		t.Errorf("expected queue URL %q, got %q", testQueueURL, aws.ToString(requested.QueueUrl))
	}
}

func TestInit_StandardQueue(t *testing.T) {
	p := initPublisher(t, &mockSQSClient{})

	if p.FIFO() {
		t.Error("expected standard queue")
	}
}

func TestInit_AlreadyInitialized(t *testing.T) {
	calls := 0
	mock := &mockSQSClient{
		getQueueAttributesFunc: func(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
			calls++
			return &sqs.GetQueueAttributesOutput{}, nil
		},
	}

	p := initPublisher(t, mock)

	if _, err := p.Init(t.Context()); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected 1 attribute lookup, got %d", calls)
	}
}

func TestInit_Errors(t *testing.T) {
	t.Run("empty queue URL", func(t *testing.T) {
		if _, err := New(&aws.Config{}, "", WithSQSClient(&mockSQSClient{})).Init(t.Context()); err == nil {
			t.Error("expected error for empty queue URL")
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		p := New(&aws.Config{}, testQueueURL, WithSQSClient(&mockSQSClient{}), WithSqsAPIMaxRetryAttempts(20))
		if _, err := p.Init(t.Context()); err == nil {
			t.Error("expected error for invalid options")
		}
	})

	t.Run("nil AWS config", func(t *testing.T) {
		if _, err := New(nil, testQueueURL).Init(t.Context()); err == nil {
			t.Error("expected error for nil AWS config")
		}
	})

	t.Run("attribute lookup fails", func(t *testing.T) {
		mock := &mockSQSClient{
			getQueueAttributesFunc: func(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
				return nil, errors.New("queue does not exist")
			},
		}

		if _, err := New(&aws.Config{}, testQueueURL, WithSQSClient(mock)).Init(t.Context()); err == nil {
			t.Error("expected error when queue lookup fails")
		}
	})
}

func TestNotify_NotInitialized(t *testing.T) {
	p := New(&aws.Config{}, testQueueURL, WithSQSClient(&mockSQSClient{}))

	if err := p.Notify(t.Context(), testEvent()); err == nil {
		t.Error("expected error when not initialized")
	}
}

func TestNotify_NilEvent(t *testing.T) {
	p := initPublisher(t, fifoQueue())

	if err := p.Notify(t.Context(), nil); err == nil {
		t.Error("expected error for nil event")
	}
}

func TestNotify_FifoQueue(t *testing.T) {
	mock := fifoQueue()
	p := initPublisher(t, mock)
	event := testEvent()

	if err := p.Notify(t.Context(), event); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	sent := mock.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}

	msg := sent[0]

	if got := aws.ToString(msg.MessageGroupId); got != "TENANT#acme#CUSTOMER#jane@example.com" {
		t.Errorf("unexpected group ID %q", got)
	}

	if aws.ToString(msg.MessageDeduplicationId) == "" {
		t.Error("expected dedup ID to be set")
	}

	if got := aws.ToString(msg.MessageAttributes["eventType"].StringValue); got != "appointment.created" {
		t.Errorf("unexpected eventType attribute %q", got)
	}

	if got := aws.ToString(msg.MessageAttributes["tenantId"].StringValue); got != "acme" {
		t.Errorf("unexpected tenantId attribute %q", got)
	}

	var decoded appointment.Event
	if err := json.Unmarshal([]byte(aws.ToString(msg.MessageBody)), &decoded); err != nil {
		t.Fatalf("message body is not an event: %v", err)
	}

	if decoded.ID != event.ID || decoded.Subject != "Appointment Confirmation" {
		t.Errorf("unexpected decoded event %+v", decoded)
	}
}

func TestNotify_StandardQueueOmitsFifoFields(t *testing.T) {
	mock := &mockSQSClient{}
	p := initPublisher(t, mock)

	if err := p.Notify(t.Context(), testEvent()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	msg := mock.sentMessages()[0]

	if msg.MessageGroupId != nil || msg.MessageDeduplicationId != nil {
		t.Error("expected no group or dedup ID for a standard queue")
	}
}

func TestNotify_SendError(t *testing.T) {
	mock := fifoQueue()
	mock.sendMessageFunc = func(_ context.Context, _ *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
		return nil, errors.New("throttled")
	}

	p := initPublisher(t, mock)

	err := p.Notify(t.Context(), testEvent())
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Errorf("expected wrapped send error, got %v", err)
	}
}

func TestNotify_InvalidCustomerKey(t *testing.T) {
	mock := fifoQueue()
	p := initPublisher(t, mock)

	event := testEvent()
	event.Appointment.CustomerEmail = ""

	if err := p.Notify(t.Context(), event); err == nil {
		t.Error("expected error for event without customer email")
	}

	if len(mock.sentMessages()) != 0 {
		t.Error("expected no message to be sent")
	}
}

func TestGroupID_LongKeyIsHashed(t *testing.T) {
	event := testEvent()
	event.Appointment.CustomerEmail = strings.Repeat("a", 120) + "@example.com"

	id, err := groupID(event)
	if err != nil {
		t.Fatalf("groupID failed: %v", err)
	}

	if len(id) > maxGroupIDLength {
		t.Errorf("group ID too long: %d", len(id))
	}
}

func TestDedupID(t *testing.T) {
	a := testEvent()
	b := testEvent()

	if dedupID(a) != dedupID(b) {
		t.Error("expected equal events to share a dedup ID")
	}

	b.ID = "evt-2"

	if dedupID(a) == dedupID(b) {
		t.Error("expected different event IDs to produce different dedup IDs")
	}
}

func TestHash_Delimiter(t *testing.T) {
	if hash("ab", "c") == hash("a", "bc") {
		t.Error("expected field boundaries to affect the hash")
	}
}
