package chathub_test

import (
	"context"
	"time"

	"github.com/danikhandev/serve-u/internal/chathub"
	"github.com/danikhandev/serve-u/internal/models"
	"github.com/danikhandev/serve-u/internal/stream"

	"github.com/stretchr/testify/mock"
)

// mockClient is an in-memory Client whose Recv channel captures every
// envelope the hub delivers to it.
type mockClient struct {
	identity string
	Recv     chan models.Envelope
	closed   bool
}

func newMockClient(identity string) *mockClient {
	return &mockClient{
		identity: identity,
		Recv:     make(chan models.Envelope, 32),
	}
}

func (m *mockClient) IdentityID() string             { return m.identity }
func (m *mockClient) SendCh() chan<- models.Envelope { return m.Recv }
func (m *mockClient) Run()                           {}
func (m *mockClient) Close()                         { m.closed = true }

// drain returns every envelope currently buffered for the client.
func (m *mockClient) drain() []models.Envelope {
	var out []models.Envelope
	for {
		select {
		case env := <-m.Recv:
			out = append(out, env)
		default:
			return out
		}
	}
}

// MockPublisher records stream events published by the hub.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev stream.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// settle gives the hub goroutine time to process channel sends.
func settle() { time.Sleep(50 * time.Millisecond) }

// inbound wraps an event payload into the Inbound form the hub expects.
func inbound(c chathub.Client, event string, payload any) chathub.Inbound {
	return chathub.Inbound{Client: c, Env: models.NewEnvelope(event, payload)}
}
