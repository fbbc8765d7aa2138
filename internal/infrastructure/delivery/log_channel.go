package delivery

import (
	"context"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// LogChannel writes notifications to the log. Used when no SendGrid key is
// configured, so local runs still show what would have been sent.
type LogChannel struct {
	log *logger.Logger
}

var _ notification.Channel = (*LogChannel)(nil)

// NewLogChannel creates a log channel.
func NewLogChannel(log *logger.Logger) *LogChannel {
	if log == nil {
		log = logger.Nop()
	}
	return &LogChannel{log: log.With(logger.Component("log_channel"))}
}

// Name implements notification.Channel.
func (c *LogChannel) Name() string { return "log" }

// Send implements notification.Channel.
func (c *LogChannel) Send(_ context.Context, n *notification.Notification) notification.DeliveryResult {
	c.log.Info("notification",
		logger.String("notification_id", n.ID),
		logger.String("type", string(n.Type)),
		logger.UserID(n.RecipientID),
		logger.Email(n.RecipientEmail),
		logger.String("title", n.Title),
		logger.String("message", n.Message),
	)
	return notification.NewSuccessResult(n.ID)
}
