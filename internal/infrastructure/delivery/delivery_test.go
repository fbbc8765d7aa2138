package delivery

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/circuitbreaker"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/retry"
)

type sliceQueue struct {
	mu    sync.Mutex
	items []*notification.Notification
}

func (q *sliceQueue) Enqueue(_ context.Context, n *notification.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	return nil
}

func (q *sliceQueue) Dequeue(_ context.Context, _ time.Duration) (*notification.Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	n := q.items[0]
	q.items = q.items[1:]
	return n, nil
}

func (q *sliceQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type scriptedChannel struct {
	results []notification.DeliveryResult
	calls   int
}

func (c *scriptedChannel) Name() string { return "scripted" }

func (c *scriptedChannel) Send(context.Context, *notification.Notification) notification.DeliveryResult {
	r := c.results[min(c.calls, len(c.results)-1)]
	c.calls++
	return r
}

func fastRetrier() *retry.Retrier {
	return retry.New(retry.WithMaxAttempts(2), retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(time.Millisecond))
}

func newNotification(t *testing.T, email string) *notification.Notification {
	t.Helper()
	n, err := notification.DayUnlocked("n1", notification.Recipient{ID: "u1", Email: email, Name: "Ann"}, "c1", "Go Basics", 2)
	require.NoError(t, err)
	return n
}

func TestSendGridChannel_BuildsRequest(t *testing.T) {
	var captured rest.Request
	ch := NewSendGridChannel("key", "Academy", "noreply@academy.test", WithSendFunc(func(req rest.Request) (*rest.Response, error) {
		captured = req
		return &rest.Response{StatusCode: http.StatusAccepted, Headers: map[string][]string{"X-Message-Id": {"m-1"}}}, nil
	}))

	res := ch.Send(context.Background(), newNotification(t, "ann@example.com"))
	require.True(t, res.Success)
	assert.Equal(t, "m-1", res.MessageID)

	assert.Equal(t, rest.Method(http.MethodPost), captured.Method)
	assert.True(t, strings.HasSuffix(captured.BaseURL, "/v3/mail/send"))
	body := string(captured.Body)
	assert.Contains(t, body, "ann@example.com")
	assert.Contains(t, body, "[Academy] Day 2 is open")
	assert.Contains(t, body, "Go Basics")
}

func TestSendGridChannel_ClassifiesFailures(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		ch := NewSendGridChannel("key", "Academy", "noreply@academy.test", WithSendFunc(func(rest.Request) (*rest.Response, error) {
			return &rest.Response{StatusCode: tc.status, Body: "nope"}, nil
		}))
		res := ch.Send(context.Background(), newNotification(t, "ann@example.com"))
		assert.False(t, res.Success)
		assert.Equal(t, tc.retryable, res.Retryable, "status %d", tc.status)
	}

	ch := NewSendGridChannel("key", "Academy", "noreply@academy.test", WithSendFunc(func(rest.Request) (*rest.Response, error) {
		t.Fatal("must not call the API without an address")
		return nil, nil
	}))
	res := ch.Send(context.Background(), newNotification(t, ""))
	assert.ErrorIs(t, res.Error, ErrNoRecipientEmail)
	assert.False(t, res.Retryable)
}

func TestWorker_DeliversAfterTransientFailure(t *testing.T) {
	q := &sliceQueue{}
	ch := &scriptedChannel{results: []notification.DeliveryResult{
		notification.NewFailureResult(errors.New("503"), true),
		notification.NewSuccessResult("m-2"),
	}}
	w := NewWorker(q, ch, fastRetrier(), circuitbreaker.New("test"), WorkerConfig{}, nil)

	n := newNotification(t, "ann@example.com")
	require.NoError(t, q.Enqueue(context.Background(), n))

	took, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, took)
	assert.Equal(t, notification.StatusDelivered, n.Status)
	assert.Equal(t, 2, ch.calls)
	assert.Equal(t, int64(1), w.Stats().Delivered)
}

func TestWorker_RequeuesUntilBudgetSpent(t *testing.T) {
	q := &sliceQueue{}
	ch := &scriptedChannel{results: []notification.DeliveryResult{
		notification.NewFailureResult(errors.New("503"), true),
	}}
	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(100))
	w := NewWorker(q, ch, fastRetrier(), breaker, WorkerConfig{}, nil)

	n := newNotification(t, "ann@example.com")
	require.NoError(t, q.Enqueue(context.Background(), n))

	for i := 0; i < 5; i++ {
		_, err := w.ProcessOne(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 0, q.len())
	assert.Equal(t, notification.StatusFailed, n.Status)
	assert.Equal(t, n.MaxRetries, n.RetryCount)
	assert.Equal(t, int64(n.MaxRetries-1), w.Stats().Requeued)
}

func TestWorker_SkipsMissingEmailWithoutTrippingBreaker(t *testing.T) {
	q := &sliceQueue{}
	ch := NewSendGridChannel("key", "Academy", "noreply@academy.test")
	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(1))
	w := NewWorker(q, ch, fastRetrier(), breaker, WorkerConfig{}, nil)

	n := newNotification(t, "")
	w.Deliver(context.Background(), n)

	assert.Equal(t, notification.StatusSkipped, n.Status)
	assert.True(t, breaker.IsClosed())
	assert.Equal(t, 0, q.len())
}

func TestWorker_EmptyQueue(t *testing.T) {
	w := NewWorker(&sliceQueue{}, NewLogChannel(nil), nil, nil, WorkerConfig{}, nil)
	took, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, took)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	q := &sliceQueue{}
	require.NoError(t, q.Enqueue(context.Background(), newNotification(t, "ann@example.com")))
	w := NewWorker(q, NewLogChannel(nil), nil, nil, WorkerConfig{Concurrency: 2, PollTimeout: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return w.Stats().Delivered == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
