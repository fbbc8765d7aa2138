// Package notification содержит доменную модель уведомлений обучающимся.
// Уведомления - побочный эффект прогресса: их сбой никогда не откатывает
// основную операцию (ответ квиза, отметку посещаемости).
package notification

import (
	"errors"
	"fmt"
	"time"
)

// Type - повод уведомления.
type Type string

const (
	TypeDayUnlocked      Type = "day_unlocked"
	TypeAttendanceMarked Type = "attendance_marked"
	TypeCourseCompleted  Type = "course_completed" // сертификат готов
	TypeEnrolled         Type = "enrolled"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeDayUnlocked, TypeAttendanceMarked, TypeCourseCompleted, TypeEnrolled:
		return true
	}
	return false
}

// Status - состояние доставки.
//
//	pending -> sending -> delivered
//	              |-> failed -> sending (повтор)
//	любой незавершённый -> skipped
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

func (s Status) IsFinal() bool { return s == StatusDelivered || s == StatusSkipped }

// allowedFrom lists the states each target may be entered from.
var allowedFrom = map[Status][]Status{
	StatusSending:   {StatusPending, StatusFailed},
	StatusDelivered: {StatusSending},
	StatusFailed:    {StatusSending},
}

var (
	ErrInvalidNotificationID   = errors.New("notification: invalid id")
	ErrInvalidNotificationType = errors.New("notification: invalid type")
	ErrInvalidRecipient        = errors.New("notification: recipient id is required")
	ErrEmptyMessage            = errors.New("notification: empty message")
	ErrInvalidStatusTransition = errors.New("notification: invalid status transition")
)

// DefaultMaxRetries applies when NewParams.MaxRetries is zero.
const DefaultMaxRetries = 3

// Data is what templates render from; it also travels in the queue.
type Data struct {
	CourseID    string `json:"course_id,omitempty"`
	CourseTitle string `json:"course_title,omitempty"`
	DayNumber   int    `json:"day_number,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Notification is the queued unit of delivery.
type Notification struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	RecipientID    string    `json:"recipient_id"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	RecipientName  string    `json:"recipient_name,omitempty"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Data           Data      `json:"data"`
	Status         Status    `json:"status"`
	RetryCount     int       `json:"retry_count"`
	MaxRetries     int       `json:"max_retries"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type NewParams struct {
	ID         string
	Type       Type
	To         Recipient
	Title      string
	Message    string
	Data       Data
	MaxRetries int
}

// New validates p and returns a pending notification.
func New(p NewParams) (*Notification, error) {
	switch {
	case p.ID == "":
		return nil, ErrInvalidNotificationID
	case !p.Type.IsValid():
		return nil, ErrInvalidNotificationType
	case p.To.ID == "":
		return nil, ErrInvalidRecipient
	case p.Message == "":
		return nil, ErrEmptyMessage
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	now := time.Now().UTC()
	return &Notification{
		ID:             p.ID,
		Type:           p.Type,
		RecipientID:    p.To.ID,
		RecipientEmail: p.To.Email,
		RecipientName:  p.To.Name,
		Title:          p.Title,
		Message:        p.Message,
		Data:           p.Data,
		Status:         StatusPending,
		MaxRetries:     p.MaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (n *Notification) moveTo(to Status) error {
	ok := false
	for _, from := range allowedFrom[to] {
		ok = ok || n.Status == from
	}
	if to == StatusSkipped {
		ok = !n.Status.IsFinal()
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, n.Status, to)
	}
	n.Status = to
	n.UpdatedAt = time.Now().UTC()
	return nil
}

func (n *Notification) MarkSending() error { return n.moveTo(StatusSending) }

func (n *Notification) MarkDelivered() error { return n.moveTo(StatusDelivered) }

// MarkFailed counts the attempt; CanRetry decides whether another one follows.
func (n *Notification) MarkFailed(reason string) error {
	if err := n.moveTo(StatusFailed); err != nil {
		return err
	}
	n.LastError = reason
	n.RetryCount++
	return nil
}

// MarkSkipped is for notifications that can never be delivered, e.g. no email.
func (n *Notification) MarkSkipped(reason string) error {
	if err := n.moveTo(StatusSkipped); err != nil {
		return err
	}
	n.LastError = reason
	return nil
}

func (n *Notification) CanRetry() bool {
	return n.Status == StatusFailed && n.RetryCount < n.MaxRetries
}

func (n *Notification) String() string {
	return fmt.Sprintf("notification %s (%s to %s, %s)", n.ID, n.Type, n.RecipientID, n.Status)
}
