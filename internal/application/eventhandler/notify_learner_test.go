package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/memory"
)

const learnerID = "6f1c2a9e-4b7d-4c1e-9a3f-2d5e8b7c6a01"

type fakeQueue struct {
	mu   sync.Mutex
	got  []*notification.Notification
	fail error
}

func (q *fakeQueue) Enqueue(_ context.Context, n *notification.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.got = append(q.got, n)
	return nil
}

func (q *fakeQueue) Dequeue(context.Context, time.Duration) (*notification.Notification, error) {
	return nil, nil
}

// remoteEvent mimics an event replayed from another instance: numbers are float64.
type remoteEvent struct {
	shared.BaseEvent
	payload map[string]interface{}
}

func (e remoteEvent) Payload() map[string]interface{} { return e.payload }

// subscriber records registrations.
type subscriber struct {
	types []shared.EventType
}

func (s *subscriber) Subscribe(t shared.EventType, _ shared.EventHandler) error {
	s.types = append(s.types, t)
	return nil
}

func (s *subscriber) SubscribeAll(shared.EventHandler) error { return nil }

func setup(t *testing.T, gates Gates) (*NotifyLearnerHandler, *fakeQueue) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Students().Upsert(ctx, &student.Profile{
		ID: learnerID, Email: "aigerim@example.com", FullName: "Aigerim", Role: shared.RoleUser,
	}))
	require.NoError(t, store.Catalog().SaveCatalog(ctx, &course.Catalog{
		Course: course.Course{ID: "go-basics", Title: "Go Basics", TotalDays: 7, Status: course.StatusActive},
	}))
	q := &fakeQueue{}
	return NewNotifyLearnerHandler(store, q, gates, nil), q
}

func allOn() Gates {
	return Gates{
		DayUnlocked:      command.AlwaysOn,
		CourseCompleted:  command.AlwaysOn,
		AttendanceMarked: command.AlwaysOn,
		Enrolled:         command.AlwaysOn,
	}
}

func TestNotifyLearner_BuildsNotifications(t *testing.T) {
	h, q := setup(t, allOn())

	require.NoError(t, h.Handle(shared.NewDayUnlockedEvent(learnerID, "go-basics", 2)))
	require.NoError(t, h.Handle(shared.NewAttendanceMarkedEvent("a1", learnerID, "go-basics", 1, "late", true)))
	require.NoError(t, h.Handle(shared.NewEnrollmentCompletedEvent("e1", learnerID, "go-basics", time.Now())))
	require.NoError(t, h.Handle(shared.NewEnrolledEvent("e1", learnerID, "go-basics")))

	require.Len(t, q.got, 4)

	unlocked := q.got[0]
	assert.Equal(t, notification.TypeDayUnlocked, unlocked.Type)
	assert.Equal(t, "aigerim@example.com", unlocked.RecipientEmail)
	assert.Equal(t, "Aigerim", unlocked.RecipientName)
	assert.Equal(t, 2, unlocked.Data.DayNumber)
	assert.Contains(t, unlocked.Message, "Go Basics")

	assert.Equal(t, notification.TypeAttendanceMarked, q.got[1].Type)
	assert.Equal(t, "late", q.got[1].Data.Status)
	assert.Equal(t, notification.TypeCourseCompleted, q.got[2].Type)
	assert.Equal(t, notification.TypeEnrolled, q.got[3].Type)
}

func TestNotifyLearner_RespectsGates(t *testing.T) {
	h, q := setup(t, Gates{
		DayUnlocked: func(userID string) bool { return userID != learnerID },
		Enrolled:    command.AlwaysOn,
	})

	require.NoError(t, h.Handle(shared.NewDayUnlockedEvent(learnerID, "go-basics", 2)))
	require.NoError(t, h.Handle(shared.NewEnrollmentCompletedEvent("e1", learnerID, "go-basics", time.Now())))
	assert.Empty(t, q.got)

	require.NoError(t, h.Handle(shared.NewEnrolledEvent("e1", learnerID, "go-basics")))
	assert.Len(t, q.got, 1)
}

func TestNotifyLearner_RemotePayload(t *testing.T) {
	h, q := setup(t, allOn())

	ev := remoteEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventDayUnlocked, learnerID),
		payload: map[string]interface{}{
			"user_id":    learnerID,
			"course_id":  "go-basics",
			"day_number": float64(3),
		},
	}
	require.NoError(t, h.Handle(ev))
	require.Len(t, q.got, 1)
	assert.Equal(t, 3, q.got[0].Data.DayNumber)
}

func TestNotifyLearner_UnknownLearnerIsSkipped(t *testing.T) {
	h, q := setup(t, allOn())

	require.NoError(t, h.Handle(shared.NewDayUnlockedEvent("0b8e4d2c-7a1f-4e3b-8c6d-5f9a1b2c3d04", "go-basics", 2)))
	assert.Empty(t, q.got)
}

func TestNotifyLearner_EnqueueFailureIsReported(t *testing.T) {
	h, q := setup(t, allOn())
	q.fail = errors.New("redis down")

	err := h.Handle(shared.NewDayUnlockedEvent(learnerID, "go-basics", 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, q.fail)
}

func TestNotifyLearner_Register(t *testing.T) {
	h, _ := setup(t, allOn())
	sub := &subscriber{}

	require.NoError(t, h.Register(sub))
	assert.ElementsMatch(t, []shared.EventType{
		shared.EventDayUnlocked,
		shared.EventEnrollmentCompleted,
		shared.EventAttendanceMarked,
		shared.EventEnrolled,
	}, sub.types)
}
