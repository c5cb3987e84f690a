package notification

import "context"

// Sender defines the contract for the delivery gateway.
// Implementations live in infra/ (e.g., Resend for email).
type Sender interface {
	// Send delivers a rendered message and returns the gateway's message ID.
	Send(ctx context.Context, msg *Message) (string, error)
}

// Renderer defines the contract for turning an intent into final content.
// Implementations live in infra/template/.
type Renderer interface {
	// Render produces a subject line, HTML body, and plain-text body for the
	// given notification kind.
	Render(kind Kind, data map[string]any) (subject, html, text string, err error)
}

// SeenStore records first observations of classifier dedup keys. It is the
// restart-safe guard against redelivered change events: FirstObservation
// returns true exactly once per key. Implementations live in infra/dedup/.
type SeenStore interface {
	FirstObservation(ctx context.Context, key string) (bool, error)
}
