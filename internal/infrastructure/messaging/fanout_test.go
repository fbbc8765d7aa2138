package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// hub is an in-process Transport: every Send reaches every listener,
// the sender included, like a single Redis server.
type hub struct {
	mu        sync.Mutex
	listeners []chan []byte
	sendErr   error
}

func (h *hub) Send(_ context.Context, _ string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	for _, l := range h.listeners {
		l <- payload
	}
	return nil
}

func (h *hub) Listen(ctx context.Context, _ string) (<-chan []byte, error) {
	in := make(chan []byte, 16)
	h.mu.Lock()
	h.listeners = append(h.listeners, in)
	h.mu.Unlock()

	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-in:
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func TestFanoutBus_DeliversToOtherInstances(t *testing.T) {
	h := &hub{}
	a, err := NewFanoutBus(FanoutOptions{Transport: h, Origin: "a"})
	require.NoError(t, err)
	b, err := NewFanoutBus(FanoutOptions{Transport: h, Origin: "b"})
	require.NoError(t, err)

	var onA int32
	got := make(chan map[string]any, 1)
	require.NoError(t, a.Subscribe(shared.EventDayUnlocked, func(shared.Event) error {
		atomic.AddInt32(&onA, 1)
		return nil
	}))
	require.NoError(t, b.Subscribe(shared.EventDayUnlocked, func(e shared.Event) error {
		assert.Equal(t, "c1", e.AggregateID())
		got <- e.Payload()
		return nil
	}))

	require.NoError(t, a.Publish(shared.NewDayUnlockedEvent("u1", "c1", 3)))

	select {
	case payload := <-got:
		assert.Equal(t, "u1", payload["user_id"])
		assert.Equal(t, float64(3), payload["day_number"])
	case <-time.After(2 * time.Second):
		t.Fatal("remote instance never received the event")
	}

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&onA), "own events are not replayed")
}

func TestFanoutBus_BroadcastFailureKeepsLocalDelivery(t *testing.T) {
	h := &hub{sendErr: errors.New("redis down")}
	bus, err := NewFanoutBus(FanoutOptions{Transport: h, Local: LocalOptions{}})
	require.NoError(t, err)
	defer bus.Close()

	delivered := false
	require.NoError(t, bus.Subscribe(shared.EventEnrolled, func(shared.Event) error {
		delivered = true
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewEnrolledEvent("e1", "u1", "c1")))
	assert.True(t, delivered)
}

func TestFanoutBus_NeedsTransport(t *testing.T) {
	_, err := NewFanoutBus(FanoutOptions{})
	assert.Error(t, err)
}

func TestFanoutBus_OwnEventsRunOncePerEvent(t *testing.T) {
	h := &hub{}
	a, err := NewFanoutBus(FanoutOptions{Transport: h, Origin: "a"})
	require.NoError(t, err)
	b, err := NewFanoutBus(FanoutOptions{Transport: h, Origin: "b"})
	require.NoError(t, err)

	// Both instances register the same once-per-event side effect, like the
	// notifier writing into one shared queue.
	var queued, seenOnB int32
	enqueue := func(shared.Event) error {
		atomic.AddInt32(&queued, 1)
		return nil
	}
	require.NoError(t, OwnEvents(a).Subscribe(shared.EventDayUnlocked, enqueue))
	require.NoError(t, OwnEvents(b).Subscribe(shared.EventDayUnlocked, enqueue))
	require.NoError(t, b.Subscribe(shared.EventDayUnlocked, func(e shared.Event) error {
		assert.True(t, IsRemote(e))
		atomic.AddInt32(&seenOnB, 1)
		return nil
	}))

	require.NoError(t, a.Publish(shared.NewDayUnlockedEvent("u1", "c1", 2)))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&seenOnB) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&queued))
	assert.False(t, IsRemote(shared.NewDayUnlockedEvent("u1", "c1", 2)))
}
