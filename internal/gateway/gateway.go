package gateway

import (
	"context"
	"fmt"
)

// Message is a fully-rendered email ready for delivery. No template
// substitution happens past this point.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    *string
}

// Gateway abstracts the external transactional-email provider. Send makes
// exactly one network call; retry policy lives with the caller, never here.
type Gateway interface {
	// Send delivers the message and returns the provider's message id.
	// Ordinary delivery failures (rejected address, provider outage) come
	// back as *DeliveryError.
	Send(ctx context.Context, msg Message) (string, error)
}

// DeliveryError is a normal, recoverable send failure surfaced by a provider.
// It drives the queue's retry/failed transition and is recorded verbatim in
// the email log for operator inspection.
type DeliveryError struct {
	Provider string
	Reason   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}
