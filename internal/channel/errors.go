package channel

import "errors"

// Error conditions surfaced by channel adapters. Callers classify with
// errors.Is; call sites wrap these with context via fmt.Errorf.
var (
	// ErrUnresolvableProfile means the raw event's channel kind has no
	// defined sender-extraction rule.
	ErrUnresolvableProfile = errors.New("unresolvable sender profile")

	// ErrUnsupportedEventType means a content accessor was called on an
	// event classified as unknown.
	ErrUnsupportedEventType = errors.New("unsupported event type")

	// ErrMalformedInteraction means a postback references a component
	// that no longer exists on the original message.
	ErrMalformedInteraction = errors.New("malformed interaction")

	// ErrUnsupportedMessageFormat means the outgoing envelope tag is not
	// recognized. The message is never silently dropped.
	ErrUnsupportedMessageFormat = errors.New("unsupported message format")

	// ErrChannelUnavailable means the target channel could not be
	// fetched or is not text-capable.
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrWebhookUnsupported means the channel delivers over a streaming
	// connection and has no inbound webhook path.
	ErrWebhookUnsupported = errors.New("webhook delivery not supported")
)
