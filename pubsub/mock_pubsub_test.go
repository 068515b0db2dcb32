package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub/v2"
)

// mockPubSubClient implements pubsubClient for testing.
type mockPubSubClient struct {
	publisherFunc  func(topic string) pubsubPublisher
	defaultPub     pubsubPublisher
	publisherCalls []string
	mu             sync.Mutex
}

func newMockPubSubClient(pub pubsubPublisher) *mockPubSubClient {
	return &mockPubSubClient{defaultPub: pub}
}

//nolint:ireturn // Returns interface required by pubsubClient interface
func (m *mockPubSubClient) Publisher(topic string) pubsubPublisher {
	m.mu.Lock()
	m.publisherCalls = append(m.publisherCalls, topic)
	m.mu.Unlock()

	if m.publisherFunc != nil {
		return m.publisherFunc(topic)
	}
	return m.defaultPub
}

func (m *mockPubSubClient) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publisherCalls
}

// mockPublisher implements pubsubPublisher for testing.
type mockPublisher struct {
	publishFunc           func(ctx context.Context, msg *pubsub.Message) pubsubPublishResult
	stopCalled            atomic.Bool
	enableMessageOrdering bool
	delayThreshold        time.Duration
	countThreshold        int
	byteThreshold         int
	publishedMessages     []*pubsub.Message
	resumedKeys           []string
	mu                    sync.Mutex
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{}
}

//nolint:ireturn // Returns interface required by pubsubPublisher interface
func (m *mockPublisher) Publish(ctx context.Context, msg *pubsub.Message) pubsubPublishResult {
	m.mu.Lock()
	m.publishedMessages = append(m.publishedMessages, msg)
	m.mu.Unlock()

	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}
	return &mockPublishResult{serverID: "server-1"}
}

func (m *mockPublisher) ResumePublish(orderingKey string) {
	m.mu.Lock()
	m.resumedKeys = append(m.resumedKeys, orderingKey)
	m.mu.Unlock()
}

func (m *mockPublisher) Stop() {
	m.stopCalled.Store(true)
}

func (m *mockPublisher) SetEnableMessageOrdering(enabled bool) {
	m.mu.Lock()
	m.enableMessageOrdering = enabled
	m.mu.Unlock()
}

func (m *mockPublisher) SetDelayThreshold(d time.Duration) {
	m.mu.Lock()
	m.delayThreshold = d
	m.mu.Unlock()
}

func (m *mockPublisher) SetCountThreshold(n int) {
	m.mu.Lock()
	m.countThreshold = n
	m.mu.Unlock()
}

func (m *mockPublisher) SetByteThreshold(n int) {
	m.mu.Lock()
	m.byteThreshold = n
	m.mu.Unlock()
}

func (m *mockPublisher) published() []*pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publishedMessages
}

// mockPublishResult implements pubsubPublishResult for testing.
type mockPublishResult struct {
	serverID string
	err      error
}

func (m *mockPublishResult) Get(_ context.Context) (string, error) {
	return m.serverID, m.err
}
