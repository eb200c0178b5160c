package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTP delivers mail through a plain SMTP relay. Useful for local
// development against a catcher like MailHog.
type SMTP struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTP(host string, port int, username, password string) (*SMTP, error) {
	if host == "" {
		return nil, errors.New("smtp: host is required")
	}
	if port == 0 {
		port = 25
	}
	return &SMTP{host: host, port: port, username: username, password: password}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	if msg.Text != nil {
		m.AddAlternative("text/plain", *msg.Text)
	}

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)
	if err := d.DialAndSend(m); err != nil {
		return "", &DeliveryError{Provider: "smtp", Reason: err.Error()}
	}

	// SMTP has no provider-assigned id; synthesize one so log rows stay
	// correlatable.
	return uuid.NewString(), nil
}
