package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/resend/resend-go/v2"
)

// Message is a rendered email
type Message struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	Template string
}

// Mailer delivers rendered messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ResendMailer sends email through the Resend API
type ResendMailer struct {
	client  *resend.Client
	from    string
	metrics *observability.Metrics
}

// NewResendMailer creates a Resend mailer. An empty baseURL keeps the SDK
// default endpoint.
func NewResendMailer(baseURL, apiKey, from string, timeout time.Duration, metrics *observability.Metrics) (*ResendMailer, error) {
	client := resend.NewCustomClient(observability.NewHTTPClient(timeout), apiKey)
	if baseURL != "" {
		// paths are resolved relative to the base URL
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid resend base URL: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendMailer{client: client, from: from, metrics: metrics}, nil
}

// Send delivers msg with the Resend emails API
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	err := m.send(ctx, msg)
	m.count(msg.Template, err)
	return err
}

func (m *ResendMailer) send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("failed to send email: no recipient")
	}

	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.Template != "" {
		req.Tags = []resend.Tag{{Name: "template", Value: msg.Template}}
	}

	if _, err := m.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *ResendMailer) count(template string, err error) {
	if m.metrics == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.metrics.EmailsSentTotal.WithLabelValues(template, status).Inc()
}

// LogMailer logs messages instead of sending them
type LogMailer struct {
	logger *observability.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *observability.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the recipient and subject
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.WithFields(map[string]interface{}{
		"to":       msg.To,
		"subject":  msg.Subject,
		"template": msg.Template,
	}).Info("Email disabled, not sending")
	return nil
}
