package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LaneRisk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu         sync.Mutex
	sigCh      chan *models.Signal
	errCh      chan error
	connected  bool
	reconnects int
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		sigCh: make(chan *models.Signal, 8),
		errCh: make(chan error, 1),
	}
}

func (f *fakeStream) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeStream) Subscribe(ctx context.Context) error { return nil }

func (f *fakeStream) Read(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sigCh, f.errCh
}

func (f *fakeStream) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	f.sigCh = make(chan *models.Signal, 8)
	f.errCh = make(chan error, 1)
	return nil
}

func (f *fakeStream) Close() error { return nil }

func (f *fakeStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// fail kills the current stream generation the way the websocket read loop
// does: one error, then both channels close.
func (f *fakeStream) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errCh <- err
	close(f.errCh)
	close(f.sigCh)
}

func (f *fakeStream) send(s *models.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sigCh <- s
}

func (f *fakeStream) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

func TestCollectorIngestsFromStream(t *testing.T) {
	stream := newFakeStream()
	eval := testEvaluator(t, newFakeMetrics())
	c := NewSignalCollector(stream, eval, newFakeMetrics(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsConnected())

	stream.send(testSignal("lane-sgp-rtm", "port-congestion", 0.8))
	require.Eventually(t, func() bool {
		_, ok := eval.Beliefs("lane-sgp-rtm")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCollectorResumesAfterReconnect(t *testing.T) {
	stream := newFakeStream()
	eval := testEvaluator(t, newFakeMetrics())
	m := newFakeMetrics()
	c := NewSignalCollector(stream, eval, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	stream.send(testSignal("lane-sgp-rtm", "port-congestion", 0.8))
	require.Eventually(t, func() bool {
		_, ok := eval.Beliefs("lane-sgp-rtm")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	stream.fail(errors.New("websocket: close 1006"))
	require.Eventually(t, func() bool {
		return stream.reconnectCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Signals on the reconnected stream must keep flowing.
	stream.send(testSignal("lane-sha-lax", "rate-spike", 0.6))
	require.Eventually(t, func() bool {
		_, ok := eval.Beliefs("lane-sha-lax")
		return ok
	}, 2*time.Second, 10*time.Millisecond, "post-reconnect signal must be ingested")
}
