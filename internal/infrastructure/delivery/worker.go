package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/circuitbreaker"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/retry"
)

// WorkerConfig configures the delivery worker.
type WorkerConfig struct {
	// Concurrency is the number of goroutines popping the queue.
	Concurrency int

	// PollTimeout bounds one blocking Dequeue.
	PollTimeout time.Duration

	// SendTimeout bounds one delivery including retries.
	SendTimeout time.Duration
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency: 4,
		PollTimeout: 5 * time.Second,
		SendTimeout: 30 * time.Second,
	}
}

// Stats counts worker outcomes.
type Stats struct {
	Delivered int64
	Failed    int64
	Requeued  int64
	Skipped   int64
}

// Worker drains a notification queue into a channel. Each send goes through
// the circuit breaker and the retrier; a notification that still fails is put
// back on the queue until its retry budget is spent.
type Worker struct {
	queue   notification.Queue
	channel notification.Channel
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	cfg     WorkerConfig
	log     *logger.Logger

	mu    sync.Mutex
	stats Stats
}

// NewWorker creates a worker. Nil retrier or breaker get the email defaults.
func NewWorker(queue notification.Queue, channel notification.Channel, retrier *retry.Retrier, breaker *circuitbreaker.CircuitBreaker, cfg WorkerConfig, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("delivery_worker"), logger.String("channel", channel.Name()))

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultWorkerConfig().PollTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultWorkerConfig().SendTimeout
	}
	if retrier == nil {
		retrier = retry.DeliveryRetrier(func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying delivery", logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
		})
	}
	if breaker == nil {
		breaker = circuitbreaker.DeliveryBreaker(channel.Name(), func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}

	return &Worker{
		queue:   queue,
		channel: channel,
		retrier: retrier,
		breaker: breaker,
		cfg:     cfg,
		log:     log,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("delivery worker started", logger.Int("concurrency", w.cfg.Concurrency))

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()

	s := w.Stats()
	w.log.Info("delivery worker stopped",
		logger.Int64("delivered", s.Delivered),
		logger.Int64("failed", s.Failed),
		logger.Int64("requeued", s.Requeued),
	)
	return nil
}

func (w *Worker) loop(ctx context.Context, id int) {
	log := w.log.With(logger.Int("worker", id))
	for ctx.Err() == nil {
		if _, err := w.ProcessOne(ctx); err != nil && ctx.Err() == nil {
			log.Error("queue read failed", logger.Err(err))
			// back off so a dead Redis does not spin the loop
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne pops one notification and delivers it. It reports whether a
// notification was taken from the queue.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	var n *notification.Notification
	err := retry.QueueRetrier().Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = w.queue.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil && ctx.Err() == nil {
			return retry.Retryable(err)
		}
		return err
	})
	if err != nil {
		return false, err
	}
	if n == nil {
		return false, nil
	}

	w.Deliver(ctx, n)
	return true, nil
}

// Deliver sends one notification and records the outcome on it.
func (w *Worker) Deliver(ctx context.Context, n *notification.Notification) {
	log := w.log.With(logger.String("notification_id", n.ID), logger.UserID(n.RecipientID))

	if err := n.MarkSending(); err != nil {
		log.Warn("notification not deliverable", logger.String("status", string(n.Status)), logger.Err(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	var (
		result    notification.DeliveryResult
		permanent error
	)
	err := w.retrier.Do(sendCtx, func(ctx context.Context) error {
		// Only provider-side failures count against the breaker.
		err := w.breaker.Execute(ctx, func(ctx context.Context) error {
			result = w.channel.Send(ctx, n)
			switch {
			case result.Success:
				return nil
			case result.Retryable:
				return result.Error
			default:
				permanent = result.Error
				return nil
			}
		})
		if permanent != nil {
			return retry.Permanent(permanent)
		}
		if err != nil {
			return retry.Retryable(err)
		}
		return nil
	})

	switch {
	case err == nil:
		_ = n.MarkDelivered()
		w.count(func(s *Stats) { s.Delivered++ })
		log.Info("notification delivered", logger.String("message_id", result.MessageID), logger.Latency(time.Since(start)))

	case errors.Is(err, ErrNoRecipientEmail):
		_ = n.MarkSkipped(err.Error())
		w.count(func(s *Stats) { s.Skipped++ })
		log.Info("notification skipped", logger.Err(err))

	default:
		_ = n.MarkFailed(err.Error())
		w.count(func(s *Stats) { s.Failed++ })
		log.Warn("notification delivery failed",
			logger.Int("retry_count", n.RetryCount),
			logger.Bool("permanent", permanent != nil),
			logger.Err(err),
		)
		if permanent == nil {
			w.requeue(ctx, n)
		}
	}
}

func (w *Worker) requeue(ctx context.Context, n *notification.Notification) {
	if !n.CanRetry() {
		return
	}
	if err := w.queue.Enqueue(ctx, n); err != nil {
		w.log.Error("requeue failed", logger.String("notification_id", n.ID), logger.Err(err))
		return
	}
	w.count(func(s *Stats) { s.Requeued++ })
}

func (w *Worker) count(fn func(*Stats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}

// Stats returns a copy of the counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
