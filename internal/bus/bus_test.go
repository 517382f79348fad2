package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"bridgebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeEvent is a minimal CanonicalEvent for bus tests.
type fakeEvent struct {
	id string
}

func (e *fakeEvent) ID() string                     { return e.id }
func (e *fakeEvent) EventType() domain.EventType    { return domain.EventTypeMessage }
func (e *fakeEvent) MessageType() domain.MessageType {
	return domain.MessageTypeMessage
}
func (e *fakeEvent) SenderForeignID() string                     { return "chan-1" }
func (e *fakeEvent) RecipientForeignID() string                  { return "chan-1" }
func (e *fakeEvent) Timestamp() time.Time                        { return time.Unix(0, 0) }
func (e *fakeEvent) Message() (string, error)                    { return "hi", nil }
func (e *fakeEvent) Payload() (*domain.Payload, error)           { return nil, nil }
func (e *fakeEvent) Attachments() ([]domain.Attachment, error)   { return nil, nil }
func (e *fakeEvent) Watermark() int64                            { return 0 }
func (e *fakeEvent) DeliveredMessages() []string                 { return nil }

func TestEmitSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.Emit("discord-channel.message", &fakeEvent{id: "ev-1"})

	select {
	case he := <-b.Subscribe():
		if he.Hook != "discord-channel.message" {
			t.Errorf("expected hook discord-channel.message, got %s", he.Hook)
		}
		if he.Event.ID() != "ev-1" {
			t.Errorf("expected event ev-1, got %s", he.Event.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEmit_ClosedBus(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	// Must not panic.
	b.Emit("discord-channel.message", &fakeEvent{id: "ev-1"})
}

func TestClose_Idempotent(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	b.Close()
}

func TestDispatch_RegisteredHandler(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	got := make(chan domain.Delivery, 1)
	b.OnDelivery("discord-channel", func(d domain.Delivery) {
		got <- d
	})

	b.Dispatch("discord-channel", domain.Delivery{
		Event:    &fakeEvent{id: "ev-2"},
		Envelope: domain.OutboundEnvelope{Format: domain.FormatText, Text: "hello"},
	})

	select {
	case d := <-got:
		if d.Envelope.Text != "hello" {
			t.Errorf("expected hello, got %s", d.Envelope.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}
}

func TestDispatch_UnregisteredChannel(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	// Must not panic, just logs a warning.
	b.Dispatch("missing-channel", domain.Delivery{})
}

func TestEmit_BufferOverflowWaits(t *testing.T) {
	b := New(1, testLogger())
	defer b.Close()

	b.Emit("h", &fakeEvent{id: "a"})

	done := make(chan struct{})
	go func() {
		b.Emit("h", &fakeEvent{id: "b"}) // blocks until a reader drains
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	<-b.Subscribe()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second emit did not complete after drain")
	}
}
