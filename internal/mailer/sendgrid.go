package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey string
	host   string
	from   *mail.Email
}

// NewSendGrid creates a SendGrid mailer sending as fromName <fromAddress>.
func NewSendGrid(apiKey, fromAddress, fromName string) *SendGridMailer {
	return NewSendGridWithHost(apiKey, "", fromAddress, fromName)
}

// NewSendGridWithHost targets a non-default API host. Empty host means the
// public SendGrid API.
func NewSendGridWithHost(apiKey, host, fromAddress, fromName string) *SendGridMailer {
	return &SendGridMailer{
		apiKey: apiKey,
		host:   host,
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

// Send delivers msg. Any non-2xx response is ErrDeliveryFailed.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML)

	// sendgrid.Client stores the body on itself; build one per send.
	request := sendgrid.GetRequest(m.apiKey, sendGridEndpoint, m.host)
	request.Method = "POST"
	client := &sendgrid.Client{Request: request}

	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid status %d", ErrDeliveryFailed, response.StatusCode)
	}

	return nil
}
