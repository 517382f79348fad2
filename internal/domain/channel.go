package domain

import (
	"context"
	"net/http"
)

// Channel is the interface every channel adapter exposes to the host
// platform (Discord, and whatever comes next).
type Channel interface {
	Name() string

	// Init establishes (or re-establishes) the channel's connection.
	// It is idempotent and safe to call repeatedly: credentials are
	// mutable at runtime, and a settings change is applied by calling
	// Init again, which tears down before rebuilding.
	Init(ctx context.Context, bus EventBus) error

	Stop() error

	// SendMessage translates an outgoing envelope into channel-native
	// payloads and delivers them to the conversation that produced the
	// triggering event.
	SendMessage(ctx context.Context, event CanonicalEvent, env OutboundEnvelope, opts SendOptions) (SendResult, error)

	// GetUserData builds a subscriber profile for the sender of an event.
	GetUserData(ctx context.Context, event CanonicalEvent) (SubscriberProfile, error)

	// HandleWebhook serves inbound webhook traffic for channels that use
	// it. Streaming channels fail fast with a typed error so the host's
	// generic webhook probe gets a descriptive answer instead of a no-op.
	HandleWebhook(w http.ResponseWriter, r *http.Request) error
}
