// Package delivery sends queued notifications to learners. The worker process
// drains the Redis queue and hands each notification to a Channel.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// ErrNoRecipientEmail is returned for notifications without an address.
var ErrNoRecipientEmail = errors.New("delivery: recipient has no email")

// SendFunc performs the HTTP call. sendgrid.API in production.
type SendFunc func(req rest.Request) (*rest.Response, error)

// SendGridChannel delivers notifications as plain-text email.
type SendGridChannel struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	send       SendFunc
}

var _ notification.Channel = (*SendGridChannel)(nil)

// SendGridOption configures a SendGridChannel.
type SendGridOption func(*SendGridChannel)

// WithSendFunc replaces the transport.
func WithSendFunc(fn SendFunc) SendGridOption {
	return func(c *SendGridChannel) { c.send = fn }
}

// WithHost points the channel at another API host.
func WithHost(host string) SendGridOption {
	return func(c *SendGridChannel) { c.host = host }
}

// NewSendGridChannel creates the email channel.
func NewSendGridChannel(key, fromName, fromEmail string, opts ...SendGridOption) *SendGridChannel {
	c := &SendGridChannel{
		key:        key,
		host:       sendGridHost,
		from:       sgmail.NewEmail(fromName, fromEmail),
		subjPrefix: "[" + fromName + "] ",
		send:       sendgrid.API,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements notification.Channel.
func (c *SendGridChannel) Name() string { return "sendgrid" }

// Send implements notification.Channel. 429 and 5xx answers are retryable,
// other 4xx answers are not.
func (c *SendGridChannel) Send(ctx context.Context, n *notification.Notification) notification.DeliveryResult {
	if strings.TrimSpace(n.RecipientEmail) == "" {
		return notification.NewFailureResult(ErrNoRecipientEmail, false)
	}
	if err := ctx.Err(); err != nil {
		return notification.NewFailureResult(err, true)
	}

	req := sendgrid.GetRequest(c.key, sendGridEndpoint, c.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(c.prepare(n))

	res, err := c.send(req)
	if err != nil {
		return notification.NewFailureResult(fmt.Errorf("sendgrid: %w", err), true)
	}
	if res.StatusCode >= http.StatusBadRequest {
		retryable := res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError
		return notification.NewFailureResult(fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body), retryable)
	}
	return notification.NewSuccessResult(messageID(res))
}

func messageID(res *rest.Response) string {
	if ids := res.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func (c *SendGridChannel) prepare(n *notification.Notification) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = c.subjPrefix + n.Title
	p.AddTos(sgmail.NewEmail(n.RecipientName, n.RecipientEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(c.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", n.Message))
	return m
}
