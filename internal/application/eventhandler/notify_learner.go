// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на изменения и запускают побочные эффекты,
// такие как постановка уведомлений в очередь.
package eventhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFY LEARNER HANDLER
// Превращает события прогресса в уведомления и кладёт их в очередь.
// Доставка best-effort: ошибка здесь никогда не откатывает исходную операцию.
// ═══════════════════════════════════════════════════════════════════════════

// Gates включает уведомления по типам. nil gate = выключено.
type Gates struct {
	DayUnlocked      command.FeatureGate
	CourseCompleted  command.FeatureGate
	AttendanceMarked command.FeatureGate
	Enrolled         command.FeatureGate
}

// NotifyLearnerHandler обрабатывает события и ставит уведомления в очередь.
type NotifyLearnerHandler struct {
	store   progress.Store
	queue   notification.Queue
	gates   Gates
	newID   command.IDGenerator
	timeout time.Duration
	log     *logger.Logger
}

// NewNotifyLearnerHandler создаёт новый обработчик.
func NewNotifyLearnerHandler(store progress.Store, queue notification.Queue, gates Gates, log *logger.Logger) *NotifyLearnerHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &NotifyLearnerHandler{
		store:   store,
		queue:   queue,
		gates:   gates,
		newID:   command.NewID,
		timeout: 5 * time.Second,
		log:     log.With(logger.Component("notify_learner")),
	}
}

// Register subscribes the handler to every event it turns into a notification.
func (h *NotifyLearnerHandler) Register(sub shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventDayUnlocked,
		shared.EventEnrollmentCompleted,
		shared.EventAttendanceMarked,
		shared.EventEnrolled,
	} {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle реализует shared.EventHandler. Events are read through Payload so
// that events replayed from another instance are handled the same way.
func (h *NotifyLearnerHandler) Handle(event shared.Event) error {
	p := event.Payload()
	userID := payloadString(p, "user_id")
	courseID := payloadString(p, "course_id")
	if userID == "" || courseID == "" {
		h.log.Warn("event without learner", logger.String("event_type", string(event.EventType())))
		return nil
	}

	gate := h.gateFor(event.EventType())
	if !gate.Enabled(userID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	log := h.log.With(
		logger.String("event_type", string(event.EventType())),
		logger.UserID(userID),
		logger.CourseID(courseID),
	)

	profile, err := h.store.Students().GetByID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			log.Debug("no profile, notification skipped")
			return nil
		}
		return fmt.Errorf("load profile: %w", err)
	}
	to := notification.Recipient{ID: profile.ID, Email: profile.Email, Name: profile.DisplayName()}

	title := ""
	if catalog, err := h.store.Catalog().GetCatalog(ctx, courseID); err == nil {
		title = catalog.Course.Title
	} else {
		log.Debug("course title unavailable", logger.Err(err))
	}

	var n *notification.Notification
	day := payloadInt(p, "day_number")
	switch event.EventType() {
	case shared.EventDayUnlocked:
		n, err = notification.DayUnlocked(h.newID(), to, courseID, title, day)
	case shared.EventEnrollmentCompleted:
		n, err = notification.CourseCompleted(h.newID(), to, courseID, title)
	case shared.EventAttendanceMarked:
		n, err = notification.AttendanceMarked(h.newID(), to, courseID, title, day, payloadString(p, "status"))
	case shared.EventEnrolled:
		n, err = notification.Enrolled(h.newID(), to, courseID, title)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("build notification: %w", err)
	}

	if err := h.queue.Enqueue(ctx, n); err != nil {
		log.Warn("notification enqueue failed", logger.Err(err))
		return fmt.Errorf("enqueue notification: %w", err)
	}
	log.Debug("notification queued", logger.String("notification_id", n.ID), logger.String("type", string(n.Type)))
	return nil
}

func (h *NotifyLearnerHandler) gateFor(t shared.EventType) command.FeatureGate {
	switch t {
	case shared.EventDayUnlocked:
		return h.gates.DayUnlocked
	case shared.EventEnrollmentCompleted:
		return h.gates.CourseCompleted
	case shared.EventAttendanceMarked:
		return h.gates.AttendanceMarked
	case shared.EventEnrolled:
		return h.gates.Enrolled
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// PAYLOAD HELPERS
// ═══════════════════════════════════════════════════════════════════════════

func payloadString(p map[string]interface{}, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// payloadInt accepts the numeric types a payload may carry after a JSON round trip.
func payloadInt(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}
