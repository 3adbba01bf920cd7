// Package mail delivers transactional messages such as account invites and
// password reset links.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Message is a plain text mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no mail webhook is configured.
type LogMailer struct {
	mu   sync.Mutex
	sent []Message
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	// Bodies carry reset links, so they only show up in debug logs.
	slog.Info("mail not delivered, no webhook configured", "to", msg.To, "subject", msg.Subject)
	slog.Debug("undelivered mail body", "to", msg.To, "body", msg.Body)
	return nil
}

// Sent returns every message passed to Send so far.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// WebhookMailer posts messages as JSON to a mail relay.
type WebhookMailer struct {
	client *resty.Client
	url    string
}

// NewWebhookMailer creates a mailer posting to url.
func NewWebhookMailer(url string) *WebhookMailer {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookMailer{client: client, url: url}
}

// Send implements Mailer.
func (m *WebhookMailer) Send(ctx context.Context, msg Message) error {
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post(m.url)
	if err != nil {
		return fmt.Errorf("posting mail to %s: %w", msg.To, err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail relay returned %s", resp.Status())
	}
	return nil
}
