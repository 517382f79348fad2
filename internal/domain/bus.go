package domain

// HookEvent is a canonical event published under a channel-specific
// hook name (e.g. "discord-channel.message").
type HookEvent struct {
	Hook  string
	Event CanonicalEvent
}

// Delivery is an outgoing envelope the host's delivery layer routes to
// a named channel, together with the event that triggered it.
type Delivery struct {
	Event    CanonicalEvent
	Envelope OutboundEnvelope
	Options  SendOptions
}

// EventBus routes normalized events from channels to the host platform
// and outgoing deliveries back to the registered channel handler.
type EventBus interface {
	Emit(hook string, ev CanonicalEvent)
	Subscribe() <-chan HookEvent
	Dispatch(channelName string, d Delivery)
	OnDelivery(channelName string, handler func(Delivery))
	Close()
}
