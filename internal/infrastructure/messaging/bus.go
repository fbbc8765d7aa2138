// Package messaging доставляет доменные события (день открыт, курс завершён,
// посещение отмечено) от команд к обработчикам уведомлений.
//
// LocalBus работает внутри процесса. FanoutBus дополнительно пересылает
// события через Redis Pub/Sub остальным экземплярам API.
package messaging

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

var (
	ErrBusClosed  = errors.New("event bus is closed")
	ErrNilHandler = errors.New("handler cannot be nil")
	ErrNilEvent   = errors.New("event cannot be nil")
	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
)

// anyType is the subscription key for SubscribeAll.
const anyType shared.EventType = "*"

// LocalOptions configures NewLocalBus.
type LocalOptions struct {
	// Async runs handlers off the publisher's goroutine, at most Workers at a time.
	Async   bool
	Workers int
	Logger  *logger.Logger
}

// DefaultLocalOptions: async with 8 workers.
func DefaultLocalOptions() LocalOptions {
	return LocalOptions{Async: true, Workers: 8}
}

// Stats are cumulative counters of a LocalBus.
type Stats struct {
	Published int64
	Delivered int64 // handler calls that returned nil
	Failed    int64 // handler calls that returned an error or panicked
	ByType    map[shared.EventType]int64
}

// LocalBus is an in-process shared.EventBus. Handler errors are logged,
// never returned to the publisher.
type LocalBus struct {
	async bool
	slots chan struct{}
	log   *logger.Logger

	mu     sync.RWMutex
	subs   map[shared.EventType][]shared.EventHandler
	closed bool

	inflight sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

func NewLocalBus(opts LocalOptions) *LocalBus {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &LocalBus{
		async: opts.Async,
		slots: make(chan struct{}, opts.Workers),
		log:   opts.Logger.With(logger.Component("eventbus")),
		subs:  make(map[shared.EventType][]shared.EventHandler),
		stats: Stats{ByType: make(map[shared.EventType]int64)},
	}
}

func (b *LocalBus) Subscribe(t shared.EventType, h shared.EventHandler) error {
	return b.add(t, h)
}

func (b *LocalBus) SubscribeAll(h shared.EventHandler) error {
	return b.add(anyType, h)
}

func (b *LocalBus) add(t shared.EventType, h shared.EventHandler) error {
	if h == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.subs[t] = append(b.subs[t], h)
	return nil
}

// Publish hands e to the typed subscribers first, then to SubscribeAll ones.
func (b *LocalBus) Publish(e shared.Event) error {
	if e == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	typed, all := b.subs[e.EventType()], b.subs[anyType]
	targets := make([]shared.EventHandler, 0, len(typed)+len(all))
	targets = append(append(targets, typed...), all...)
	if b.async {
		// Add под RLock: Close не может начать ожидание раньше
		b.inflight.Add(len(targets))
	}
	b.mu.RUnlock()

	b.statsMu.Lock()
	b.stats.Published++
	b.stats.ByType[e.EventType()]++
	b.statsMu.Unlock()

	for _, h := range targets {
		if !b.async {
			b.run(e, h)
			continue
		}
		go func(h shared.EventHandler) {
			defer b.inflight.Done()
			b.slots <- struct{}{}
			defer func() { <-b.slots }()
			b.run(e, h)
		}(h)
	}
	return nil
}

func (b *LocalBus) run(e shared.Event, h shared.EventHandler) {
	err := b.call(e, h)

	b.statsMu.Lock()
	if err != nil {
		b.stats.Failed++
	} else {
		b.stats.Delivered++
	}
	b.statsMu.Unlock()

	if err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(e.EventType())),
			logger.String("aggregate_id", e.AggregateID()),
			logger.Err(err),
		)
	}
}

func (b *LocalBus) call(e shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panic",
				logger.String("event_type", string(e.EventType())),
				logger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(e)
}

// Close rejects new events and subscriptions, then waits for running handlers.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	already := b.closed
	b.closed = true
	b.mu.Unlock()

	if !already {
		b.inflight.Wait()
	}
	return nil
}

func (b *LocalBus) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	out := b.stats
	out.ByType = make(map[shared.EventType]int64, len(b.stats.ByType))
	for k, v := range b.stats.ByType {
		out.ByType[k] = v
	}
	return out
}
