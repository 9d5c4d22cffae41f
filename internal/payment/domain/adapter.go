package domain

import (
	"context"
	"net/http"

	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
)

// ParsedEvent is a provider webhook after adapter normalization.
type ParsedEvent struct {
	// ProviderEventID is the provider's unique delivery id, used as the
	// replay-guard key.
	ProviderEventID string
	Event           subscriptiondomain.ProviderEvent
}

// Adapter translates one payment provider's webhook dialect.
type Adapter interface {
	Provider() string
	// Verify checks the request signature against the shared secret.
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	// Parse normalizes the payload. Event types the platform does not react
	// to return ErrEventIgnored.
	Parse(ctx context.Context, payload []byte) (*ParsedEvent, error)
}
