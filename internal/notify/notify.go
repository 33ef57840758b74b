// Package notify delivers order emails. Delivery is best-effort: failures are
// logged and counted, never returned to the order path.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/mohamedebada21/last-online-halal/pkg/logging"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SendGrid sends through the SendGrid v3 mail API.
type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGrid(apiKey, fromName, fromAddress string) *SendGrid {
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	email := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail("", msg.To), msg.Text, msg.HTML)
	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogNotifier writes messages to the structured log instead of sending them.
type LogNotifier struct {
	Service string
}

func (n LogNotifier) Send(_ context.Context, msg Message) error {
	logging.Log(logging.Fields{
		Service: n.Service,
		Step:    "email",
		Status:  "logged",
		Message: fmt.Sprintf("to=%s subject=%q", msg.To, msg.Subject),
	})
	return nil
}
