package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// DefaultChannel is the Pub/Sub channel shared by all API instances.
const DefaultChannel = "lms:events"

// ══════════════════════════════════════════════════════════════════════════════
// TRANSPORT
// ══════════════════════════════════════════════════════════════════════════════

// Transport moves raw envelopes between instances.
type Transport interface {
	Send(ctx context.Context, channel string, payload []byte) error
	// Listen delivers payloads until ctx ends; the channel is then closed.
	Listen(ctx context.Context, channel string) (<-chan []byte, error)
}

// RedisTransport is a Transport over Redis Pub/Sub.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport uses client without owning it.
func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

func (t *RedisTransport) Send(ctx context.Context, channel string, payload []byte) error {
	return t.client.Publish(ctx, channel, payload).Err()
}

func (t *RedisTransport) Listen(ctx context.Context, channel string) (<-chan []byte, error) {
	ps := t.client.Subscribe(ctx, channel)
	// подтверждаем подписку, иначе первые Send могут потеряться
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FANOUT BUS
// ══════════════════════════════════════════════════════════════════════════════

// FanoutOptions configures NewFanoutBus.
type FanoutOptions struct {
	Transport Transport
	Channel   string
	// Origin tags envelopes so an instance skips its own events. Random by default.
	Origin string
	Local  LocalOptions
	Logger *logger.Logger
}

// FanoutBus delivers every event locally and broadcasts it to other instances.
// Events arriving from others are delivered to local subscribers only.
type FanoutBus struct {
	*LocalBus

	transport Transport
	channel   string
	origin    string
	log       *logger.Logger

	stop    context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

func NewFanoutBus(opts FanoutOptions) (*FanoutBus, error) {
	if opts.Transport == nil {
		return nil, errors.New("fanout bus needs a transport")
	}
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Local.Logger == nil {
		opts.Local.Logger = opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	incoming, err := opts.Transport.Listen(ctx, opts.Channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("listen on %s: %w", opts.Channel, err)
	}

	b := &FanoutBus{
		LocalBus:  NewLocalBus(opts.Local),
		transport: opts.Transport,
		channel:   opts.Channel,
		origin:    opts.Origin,
		log:       opts.Logger.With(logger.Component("eventbus_fanout"), logger.String("origin", opts.Origin)),
		stop:      cancel,
		stopped:   make(chan struct{}),
	}
	go b.receive(incoming)
	return b, nil
}

// Publish never fails because of the transport: a broadcast error is logged
// and local subscribers still get the event.
func (b *FanoutBus) Publish(e shared.Event) error {
	if e == nil {
		return ErrNilEvent
	}
	if err := b.LocalBus.Publish(e); err != nil {
		return err
	}

	raw, err := json.Marshal(envelope{
		Origin:      b.origin,
		Type:        e.EventType(),
		AggregateID: e.AggregateID(),
		OccurredAt:  e.OccurredAt(),
		Payload:     e.Payload(),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.transport.Send(ctx, b.channel, raw); err != nil {
		b.log.Warn("event broadcast failed",
			logger.String("event_type", string(e.EventType())), logger.Err(err))
	}
	return nil
}

func (b *FanoutBus) receive(incoming <-chan []byte) {
	defer close(b.stopped)
	for raw := range incoming {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			b.log.Warn("dropping malformed envelope", logger.Err(err))
			continue
		}
		if env.Origin == b.origin {
			continue
		}
		if err := b.LocalBus.Publish(remoteEvent{env: env}); err != nil && !errors.Is(err, ErrBusClosed) {
			b.log.Error("remote event delivery failed", logger.Err(err))
		}
	}
}

// Close stops listening, then closes the local bus.
func (b *FanoutBus) Close() error {
	b.once.Do(func() {
		b.stop()
		<-b.stopped
	})
	return b.LocalBus.Close()
}

// envelope is the wire form of an event.
type envelope struct {
	Origin      string           `json:"origin"`
	Type        shared.EventType `json:"type"`
	AggregateID string           `json:"aggregate_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     map[string]any   `json:"payload"`
}

// remoteEvent exposes a decoded envelope as shared.Event.
type remoteEvent struct{ env envelope }

func (e remoteEvent) EventType() shared.EventType { return e.env.Type }

func (e remoteEvent) AggregateID() string { return e.env.AggregateID }

func (e remoteEvent) OccurredAt() time.Time { return e.env.OccurredAt }

func (e remoteEvent) Payload() map[string]any { return e.env.Payload }

// IsRemote reports whether e arrived from another instance.
func IsRemote(e shared.Event) bool {
	_, ok := e.(remoteEvent)
	return ok
}

// OwnEvents wraps sub so registered handlers see only events published by
// this process. Side effects that must happen once per event (queued
// notifications) subscribe through it; every instance would repeat them otherwise.
func OwnEvents(sub shared.EventSubscriber) shared.EventSubscriber {
	return ownEvents{sub}
}

type ownEvents struct{ inner shared.EventSubscriber }

func (o ownEvents) Subscribe(t shared.EventType, h shared.EventHandler) error {
	return o.inner.Subscribe(t, skipRemote(h))
}

func (o ownEvents) SubscribeAll(h shared.EventHandler) error {
	return o.inner.SubscribeAll(skipRemote(h))
}

func skipRemote(h shared.EventHandler) shared.EventHandler {
	if h == nil {
		return nil
	}
	return func(e shared.Event) error {
		if IsRemote(e) {
			return nil
		}
		return h(e)
	}
}
