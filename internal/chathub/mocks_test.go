package chathub_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"projecthub/backend/internal/chathub"
	"projecthub/backend/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateMessage(ctx context.Context, input models.ChatMessageInput) (*models.ChatMessage, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatMessage), args.Error(1)
}

func (m *MockStorage) ListMessagesByRoom(ctx context.Context, projectID uint) ([]models.ChatMessage, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

// MockGenerator is a testify mock of ai.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockClient records what the hub queues for it. Run is a no-op.
type MockClient struct {
	connID string
	userID string
	send   chan models.Envelope

	mu     sync.Mutex
	closed bool
}

func newMockClient(connID string) *MockClient {
	return &MockClient{connID: connID, send: make(chan models.Envelope, 64)}
}

func (c *MockClient) GetConnID() string                      { return c.connID }
func (c *MockClient) GetUserID() string                      { return c.userID }
func (c *MockClient) GetSendChannel() chan<- models.Envelope { return c.send }
func (c *MockClient) Run()                                   {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next waits for the next envelope.
func (c *MockClient) next(t *testing.T) models.Envelope {
	t.Helper()
	select {
	case env := <-c.send:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no envelope received", c.connID)
		return models.Envelope{}
	}
}

// drain returns everything queued so far without waiting.
func (c *MockClient) drain() []models.Envelope {
	var out []models.Envelope
	for {
		select {
		case env := <-c.send:
			out = append(out, env)
		default:
			return out
		}
	}
}

// eventsOf filters envelopes by event name.
func eventsOf(envs []models.Envelope, event string) []models.Envelope {
	var out []models.Envelope
	for _, env := range envs {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

// newTestHub builds a hub without running it and connects the given ids.
func newTestHub(t *testing.T, s *MockStorage, gen *MockGenerator, connIDs ...string) (*chathub.ManagerService, map[string]*MockClient) {
	t.Helper()
	hub := chathub.NewManagerService(s, gen)
	clients := make(map[string]*MockClient, len(connIDs))
	for _, id := range connIDs {
		c := newMockClient(id)
		hub.Connect(c)
		clients[id] = c
	}
	return hub, clients
}

func frame(event, data string) []byte {
	return []byte(`{"event":"` + event + `","data":` + data + `}`)
}
