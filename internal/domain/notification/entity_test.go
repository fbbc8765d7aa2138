package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validates(t *testing.T) {
	to := Recipient{ID: "u1", Email: "u1@example.com"}

	_, err := New(NewParams{Type: TypeEnrolled, To: to, Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidNotificationID)
	_, err = New(NewParams{ID: "n1", Type: "digest", To: to, Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidNotificationType)
	_, err = New(NewParams{ID: "n1", Type: TypeEnrolled, Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	_, err = New(NewParams{ID: "n1", Type: TypeEnrolled, To: to})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	n, err := New(NewParams{ID: "n1", Type: TypeEnrolled, To: to, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, DefaultMaxRetries, n.MaxRetries)
	assert.Equal(t, "u1@example.com", n.RecipientEmail)
}

func TestNotification_DeliveryLifecycle(t *testing.T) {
	n, err := CourseCompleted("n1", Recipient{ID: "u1"}, "go-basics", "")
	require.NoError(t, err)
	n.MaxRetries = 2

	assert.ErrorIs(t, n.MarkDelivered(), ErrInvalidStatusTransition, "pending cannot be delivered")

	require.NoError(t, n.MarkSending())
	require.NoError(t, n.MarkFailed("503"))
	assert.True(t, n.CanRetry())

	require.NoError(t, n.MarkSending())
	require.NoError(t, n.MarkFailed("503"))
	assert.False(t, n.CanRetry(), "retry budget spent")
	assert.Equal(t, 2, n.RetryCount)

	require.NoError(t, n.MarkSkipped("gave up"))
	assert.ErrorIs(t, n.MarkSkipped("again"), ErrInvalidStatusTransition)
	assert.ErrorIs(t, n.MarkSending(), ErrInvalidStatusTransition)
	assert.Equal(t, "gave up", n.LastError)
}

func TestTemplates_FallBackToCourseID(t *testing.T) {
	n, err := DayUnlocked("n1", Recipient{ID: "u1"}, "go-basics", "", 3)
	require.NoError(t, err)
	assert.Contains(t, n.Message, "Day 3 of go-basics")
	assert.Equal(t, 3, n.Data.DayNumber)
}
