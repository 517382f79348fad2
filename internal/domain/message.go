package domain

import "time"

// EventType classifies who authored an incoming event.
type EventType string

const (
	EventTypeMessage EventType = "message"
	EventTypeEcho    EventType = "echo" // the bot's own sent messages appearing on the stream
	EventTypeUnknown EventType = "unknown"
)

// MessageType classifies the shape of an incoming event.
type MessageType string

const (
	MessageTypeMessage     MessageType = "message"
	MessageTypePostback    MessageType = "postback"
	MessageTypeAttachments MessageType = "attachments"
	MessageTypeUnknown     MessageType = "unknown"
)

// AttachmentType is the coarse media category of an attachment, derived
// from the primary part of its MIME type.
type AttachmentType string

const (
	AttachmentTypeImage   AttachmentType = "image"
	AttachmentTypeVideo   AttachmentType = "video"
	AttachmentTypeAudio   AttachmentType = "audio"
	AttachmentTypeFile    AttachmentType = "file"
	AttachmentTypeUnknown AttachmentType = "unknown"
)

// Attachment references a piece of media carried by an incoming event.
type Attachment struct {
	Type      AttachmentType
	URL       string
	ForeignID string // the platform's own attachment identifier
}

// Payload is the structured part of a canonical event: a postback's
// custom id, or a typed attachment reference.
type Payload struct {
	Postback   string
	Attachment *Attachment
}

// CanonicalEvent is the platform-neutral shape every channel adapter
// normalizes its raw events into. Identity accessors (ID, EventType,
// MessageType, sender/recipient, Timestamp) always succeed; content
// accessors return an error on events classified as unknown, so callers
// must check EventType before reading content.
type CanonicalEvent interface {
	ID() string
	EventType() EventType
	MessageType() MessageType
	SenderForeignID() string
	RecipientForeignID() string
	Timestamp() time.Time

	Message() (string, error)
	Payload() (*Payload, error)
	Attachments() ([]Attachment, error)

	// Watermark and DeliveredMessages exist for channels with delivery
	// receipts. Channels without receipts return zero values.
	Watermark() int64
	DeliveredMessages() []string
}

// MessageFormat tags the variants of an outgoing envelope.
type MessageFormat string

const (
	FormatText         MessageFormat = "text"
	FormatButtons      MessageFormat = "buttons"
	FormatQuickReplies MessageFormat = "quick_replies"
	FormatAttachment   MessageFormat = "attachment"
	FormatList         MessageFormat = "list"
	FormatCarousel     MessageFormat = "carousel"
)

// ButtonType distinguishes server-side postbacks from plain links.
type ButtonType string

const (
	ButtonTypePostback ButtonType = "postback"
	ButtonTypeWebURL   ButtonType = "web_url"
)

// Button is one interactive control in an outgoing message.
type Button struct {
	Title   string
	Type    ButtonType
	Payload string // postback payload, echoed back as the click's custom id
	URL     string // web_url target; no server-side event fires for it
}

// QuickReply is a one-tap suggested response.
type QuickReply struct {
	Title   string
	Payload string
}

// Element is one entry of a list or carousel envelope.
type Element struct {
	Title    string
	Subtitle string
	ImageURL string
	URL      string
	Buttons  []Button
}

// Pagination carries list paging metadata; more results exist beyond the
// current page when Total-Skip-Limit > 0.
type Pagination struct {
	Total int
	Skip  int
	Limit int
}

// OutboundEnvelope is the tagged union the host platform hands to a
// channel for delivery. Format selects the variant; only the fields of
// the selected variant are read.
type OutboundEnvelope struct {
	Format       MessageFormat
	Text         string
	Buttons      []Button
	QuickReplies []QuickReply
	AttachmentID string // durable reference resolved via the attachment service
	Elements     []Element
	Pagination   *Pagination
}

// SendOptions tweaks a single SendMessage call.
type SendOptions struct {
	Typing bool // emit a typing indicator before sending
}

// SendResult reports the delivered message. For multi-message sequences
// (carousel, list) MID is the id of the last message sent.
type SendResult struct {
	MID string
}
