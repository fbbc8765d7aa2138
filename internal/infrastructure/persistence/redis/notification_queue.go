package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
)

// DefaultQueueKey is the Redis list used when none is configured.
const DefaultQueueKey = "notification:queue"

// NotificationQueue implements notification.Queue with LPUSH/BRPOP, so the
// oldest notification is delivered first.
type NotificationQueue struct {
	client *redis.Client
	key    string
}

var _ notification.Queue = (*NotificationQueue)(nil)

// NewNotificationQueue creates a queue on the given list key.
func NewNotificationQueue(cache *Cache, key string) *NotificationQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &NotificationQueue{client: cache.Client(), key: key}
}

// Enqueue pushes the notification onto the list.
func (q *NotificationQueue) Enqueue(ctx context.Context, n *notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheEncoding, err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue notification %s: %w", n.ID, err)
	}
	return nil
}

// Dequeue blocks up to timeout. Returns nil, nil when nothing arrived.
func (q *NotificationQueue) Dequeue(ctx context.Context, timeout time.Duration) (*notification.Notification, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue notification: %w", err)
	}
	// res = [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue notification: unexpected reply of %d elements", len(res))
	}
	return decodeNotification([]byte(res[1]))
}

// Len returns the number of queued notifications.
func (q *NotificationQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func decodeNotification(data []byte) (*notification.Notification, error) {
	var n notification.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheEncoding, err)
	}
	return &n, nil
}
