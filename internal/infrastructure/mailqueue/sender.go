// Package mailqueue publishes outbound mail onto the RabbitMQ queue that
// cmd/mailworker drains. The API never talks to Mailgun directly.
package mailqueue

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/studycircle/studycircle-api/pkg/mailer"
	"github.com/studycircle/studycircle-api/pkg/mailer/templates"
)

// LogSender stands in when mail sending is disabled or the broker is not
// configured. Messages are logged and dropped.
type LogSender struct {
	Logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{Logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.Logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("mail sending disabled, dropping message")
	return nil
}

type Sender struct {
	queue   *Queue
	appName string
}

func NewSender(queue *Queue, appName string) *Sender {
	return &Sender{queue: queue, appName: appName}
}

// Send enqueues an EmailJob. The body's last line is the action link, the
// rest is the human-readable message; the worker renders both into the
// action-link HTML template.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	message := body
	actionURL := ""
	if i := strings.LastIndex(body, "\n"); i >= 0 {
		last := strings.TrimSpace(body[i+1:])
		if strings.HasPrefix(last, "http://") || strings.HasPrefix(last, "https://") {
			actionURL = last
			message = strings.TrimSpace(body[:i])
		}
	}

	job := mailer.EmailJob{
		To:       to,
		Subject:  subject,
		Text:     body,
		Template: templates.ActionLink,
		Data: map[string]any{
			"app_name":   s.appName,
			"message":    message,
			"action_url": actionURL,
		},
	}
	return s.queue.Publish(ctx, job)
}
