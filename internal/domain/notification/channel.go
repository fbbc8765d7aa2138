package notification

import (
	"context"
	"time"
)

// DeliveryResult is what a Channel reports for one attempt.
// Retryable only matters when Success is false.
type DeliveryResult struct {
	Success   bool
	MessageID string
	Error     error
	Retryable bool
	SentAt    time.Time
}

func NewSuccessResult(messageID string) DeliveryResult {
	return DeliveryResult{Success: true, MessageID: messageID, SentAt: time.Now().UTC()}
}

func NewFailureResult(err error, retryable bool) DeliveryResult {
	return DeliveryResult{Error: err, Retryable: retryable, SentAt: time.Now().UTC()}
}

// Channel is one way of reaching a learner: SendGrid email or the log.
type Channel interface {
	Name() string
	Send(ctx context.Context, n *Notification) DeliveryResult
}

// Queue hands notifications from the API to the worker.
type Queue interface {
	Enqueue(ctx context.Context, n *Notification) error
	// Dequeue waits up to timeout; (nil, nil) means nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*Notification, error)
}
