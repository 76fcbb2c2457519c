// Package mailer sends transactional e-mail.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

var (
	// ErrThrottled is returned when the outbound rate limit is exhausted.
	ErrThrottled = errors.New("mailer: send rate exceeded")
	// ErrDeliveryFailed is returned when the provider rejects a message.
	ErrDeliveryFailed = errors.New("mailer: delivery failed")
)

// Message is a single outbound e-mail.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages. Implementations make one attempt and do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the logger instead of delivering them.
// Intended for development.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "email_logged",
		"to", msg.To,
		"subject", msg.Subject,
	)
	m.logger.DebugContext(ctx, "email_body", "text", msg.Text)
	return nil
}

// Throttled limits the send rate of another Mailer.
type Throttled struct {
	next    Mailer
	limiter *rate.Limiter
}

// NewThrottled wraps next with a token bucket of perSecond and burst.
func NewThrottled(next Mailer, perSecond float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Send forwards msg when a token is available and fails fast otherwise.
func (t *Throttled) Send(ctx context.Context, msg Message) error {
	if !t.limiter.Allow() {
		return ErrThrottled
	}
	if err := t.next.Send(ctx, msg); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}
