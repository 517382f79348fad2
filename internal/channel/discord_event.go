package channel

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"bridgebot/internal/domain"
)

// attachmentIDPrefix marks the synthetic event emitted for the
// attachment half of a mixed text+attachments message, so both halves
// stay traceable to the same raw message id.
const attachmentIDPrefix = "attachment-"

// DiscordEvent is the canonical view over one raw Discord gateway event.
// It is immutable after construction.
type DiscordEvent struct {
	id          string
	eventType   domain.EventType
	messageType domain.MessageType
	channelID   string
	timestamp   time.Time

	text        string
	payload     *domain.Payload
	attachments []domain.Attachment
}

var _ domain.CanonicalEvent = (*DiscordEvent)(nil)

func (e *DiscordEvent) ID() string                      { return e.id }
func (e *DiscordEvent) EventType() domain.EventType     { return e.eventType }
func (e *DiscordEvent) MessageType() domain.MessageType { return e.messageType }
func (e *DiscordEvent) Timestamp() time.Time            { return e.timestamp }

// Sender and recipient both resolve to the originating channel id: a
// Discord conversation is addressed by channel, not by user.
func (e *DiscordEvent) SenderForeignID() string    { return e.channelID }
func (e *DiscordEvent) RecipientForeignID() string { return e.channelID }

func (e *DiscordEvent) Message() (string, error) {
	if e.eventType == domain.EventTypeUnknown {
		return "", fmt.Errorf("read message of event %s: %w", e.id, ErrUnsupportedEventType)
	}
	return e.text, nil
}

func (e *DiscordEvent) Payload() (*domain.Payload, error) {
	if e.eventType == domain.EventTypeUnknown {
		return nil, fmt.Errorf("read payload of event %s: %w", e.id, ErrUnsupportedEventType)
	}
	return e.payload, nil
}

func (e *DiscordEvent) Attachments() ([]domain.Attachment, error) {
	if e.eventType == domain.EventTypeUnknown {
		return nil, fmt.Errorf("read attachments of event %s: %w", e.id, ErrUnsupportedEventType)
	}
	return e.attachments, nil
}

// Discord has no delivery receipts, so the receipt accessors stay at
// their zero values.
func (e *DiscordEvent) Watermark() int64            { return 0 }
func (e *DiscordEvent) DeliveredMessages() []string { return nil }

// wrapMessage normalizes one raw gateway message into canonical events.
// A message carrying both text and attachments yields two events, one
// per half; a message with neither yields a single unknown event whose
// content accessors fail.
func wrapMessage(m *discordgo.Message, botUserID string) []*DiscordEvent {
	eventType := domain.EventTypeMessage
	if m.Author != nil && m.Author.ID == botUserID {
		eventType = domain.EventTypeEcho
	}

	text := strings.TrimSpace(m.Content)
	if text == "" && len(m.Attachments) == 0 {
		return []*DiscordEvent{{
			id:          m.ID,
			eventType:   domain.EventTypeUnknown,
			messageType: domain.MessageTypeUnknown,
			channelID:   m.ChannelID,
			timestamp:   m.Timestamp,
		}}
	}

	var events []*DiscordEvent
	if text != "" {
		events = append(events, &DiscordEvent{
			id:          m.ID,
			eventType:   eventType,
			messageType: domain.MessageTypeMessage,
			channelID:   m.ChannelID,
			timestamp:   m.Timestamp,
			text:        text,
		})
	}
	if len(m.Attachments) > 0 {
		events = append(events, newAttachmentsEvent(m, eventType))
	}
	return events
}

// newAttachmentsEvent builds the attachments half of a raw message. When
// no attachment resolves it still succeeds, degrading to an explicit
// unknown-attachment placeholder.
func newAttachmentsEvent(m *discordgo.Message, eventType domain.EventType) *DiscordEvent {
	atts := make([]domain.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		atts = append(atts, domain.Attachment{
			Type:      attachmentTypeFromMime(a.ContentType),
			URL:       a.URL,
			ForeignID: a.ID,
		})
	}

	payload := &domain.Payload{Attachment: &domain.Attachment{Type: domain.AttachmentTypeUnknown}}
	if len(atts) > 0 {
		payload = &domain.Payload{Attachment: &atts[0]}
	}

	return &DiscordEvent{
		id:          attachmentIDPrefix + m.ID,
		eventType:   eventType,
		messageType: domain.MessageTypeAttachments,
		channelID:   m.ChannelID,
		timestamp:   m.Timestamp,
		payload:     payload,
		attachments: atts,
	}
}

// wrapInteraction normalizes a button click or slash command. Clicks
// become postback events carrying the clicked button's custom id as
// payload and its label as text; slash commands become plain message
// events carrying the command's text option. Anything else classifies
// as unknown.
func wrapInteraction(i *discordgo.Interaction) (*DiscordEvent, error) {
	ts := interactionTimestamp(i.ID)

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if i.Message == nil {
			return nil, fmt.Errorf("component interaction %s has no source message: %w", i.ID, ErrMalformedInteraction)
		}
		label, ok := buttonLabel(i.Message.Components, data.CustomID)
		if !ok {
			return nil, fmt.Errorf("button %q not found on message %s: %w", data.CustomID, i.Message.ID, ErrMalformedInteraction)
		}
		return &DiscordEvent{
			id:          i.ID,
			eventType:   domain.EventTypeMessage,
			messageType: domain.MessageTypePostback,
			channelID:   i.ChannelID,
			timestamp:   ts,
			text:        label,
			payload:     &domain.Payload{Postback: data.CustomID},
		}, nil

	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		text := commandText(data.Options)
		if text == "" {
			break
		}
		return &DiscordEvent{
			id:          i.ID,
			eventType:   domain.EventTypeMessage,
			messageType: domain.MessageTypeMessage,
			channelID:   i.ChannelID,
			timestamp:   ts,
			text:        text,
		}, nil
	}

	return &DiscordEvent{
		id:          i.ID,
		eventType:   domain.EventTypeUnknown,
		messageType: domain.MessageTypeUnknown,
		channelID:   i.ChannelID,
		timestamp:   ts,
	}, nil
}

// buttonLabel finds the label of the button with the given custom id in
// the message's component rows.
func buttonLabel(components []discordgo.MessageComponent, customID string) (string, bool) {
	for _, comp := range components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			btn, ok := rc.(*discordgo.Button)
			if !ok {
				continue
			}
			if btn.CustomID == customID {
				return btn.Label, true
			}
		}
	}
	return "", false
}

func commandText(options []*discordgo.ApplicationCommandInteractionDataOption) string {
	for _, opt := range options {
		if opt != nil && opt.Type == discordgo.ApplicationCommandOptionString {
			return strings.TrimSpace(opt.StringValue())
		}
	}
	return ""
}

func interactionTimestamp(id string) time.Time {
	if ts, err := discordgo.SnowflakeTimestamp(id); err == nil {
		return ts
	}
	return time.Now()
}

func attachmentTypeFromMime(mime string) domain.AttachmentType {
	primary, _, _ := strings.Cut(mime, "/")
	switch primary {
	case "image":
		return domain.AttachmentTypeImage
	case "video":
		return domain.AttachmentTypeVideo
	case "audio":
		return domain.AttachmentTypeAudio
	case "":
		return domain.AttachmentTypeUnknown
	default:
		return domain.AttachmentTypeFile
	}
}
