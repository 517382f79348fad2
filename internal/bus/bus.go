package bus

import (
	"log/slog"
	"sync"
	"time"

	"bridgebot/internal/domain"
)

const emitTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based event bus for in-process
// communication between channel adapters and the host platform.
type InMemoryBus struct {
	inbound  chan domain.HookEvent
	handlers map[string]func(domain.Delivery)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:  make(chan domain.HookEvent, bufferSize),
		handlers: make(map[string]func(domain.Delivery)),
		logger:   logger,
	}
}

// Emit publishes a canonical event under a hook name.
// Blocks up to 10 seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Emit(hook string, ev domain.CanonicalEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to emit on closed bus", "hook", hook)
		return
	}

	he := domain.HookEvent{Hook: hook, Event: ev}
	select {
	case b.inbound <- he:
	default:
		// Bus full — wait with timeout instead of dropping
		b.logger.Warn("inbound bus full, waiting...", "hook", hook, "event_id", ev.ID())
		timer := time.NewTimer(emitTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- he:
			b.logger.Info("event delivered after wait", "hook", hook)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s",
				"hook", hook,
				"event_id", ev.ID(),
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.HookEvent {
	return b.inbound
}

// Dispatch routes an outgoing delivery to the handler registered for
// the named channel.
func (b *InMemoryBus) Dispatch(channelName string, d domain.Delivery) {
	b.mu.RLock()
	handler, ok := b.handlers[channelName]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no delivery handler registered for channel",
			"channel", channelName,
		)
		return
	}

	handler(d)
}

func (b *InMemoryBus) OnDelivery(channelName string, handler func(domain.Delivery)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channelName] = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
