package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"bridgebot/internal/domain"
)

const (
	// Discord caps an action row at five buttons.
	maxButtonsPerRow = 5

	// viewMoreCustomID is the fixed custom id of the pagination button
	// appended to list messages when more results exist.
	viewMoreCustomID = "VIEW_MORE"
)

// formatter translates outgoing envelopes into Discord-native message
// payloads. List and carousel envelopes expand into one message per
// element so each element keeps its own embed, image file and buttons.
type formatter struct {
	files  domain.AttachmentService
	logger *slog.Logger
}

func (f *formatter) Format(ctx context.Context, env domain.OutboundEnvelope) ([]*discordgo.MessageSend, error) {
	switch env.Format {
	case domain.FormatText:
		return []*discordgo.MessageSend{{Content: env.Text}}, nil

	case domain.FormatButtons:
		msg := &discordgo.MessageSend{Content: env.Text}
		if row := f.buttonRow(env.Buttons, ""); row != nil {
			msg.Components = []discordgo.MessageComponent{row}
		}
		return []*discordgo.MessageSend{msg}, nil

	case domain.FormatQuickReplies:
		msg := &discordgo.MessageSend{Content: env.Text}
		if row := f.quickReplyRow(env.QuickReplies); row != nil {
			msg.Components = []discordgo.MessageComponent{row}
		}
		return []*discordgo.MessageSend{msg}, nil

	case domain.FormatAttachment:
		return f.formatAttachment(ctx, env)

	case domain.FormatList:
		return f.formatElements(ctx, env, true)

	case domain.FormatCarousel:
		return f.formatElements(ctx, env, false)

	default:
		return nil, fmt.Errorf("format %q: %w", env.Format, ErrUnsupportedMessageFormat)
	}
}

func (f *formatter) formatAttachment(ctx context.Context, env domain.OutboundEnvelope) ([]*discordgo.MessageSend, error) {
	fileURL, err := f.files.ResolveURL(ctx, env.AttachmentID)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment %s: %w", env.AttachmentID, err)
	}
	rc, err := f.files.Open(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("open attachment %s: %w", env.AttachmentID, err)
	}
	msg := &discordgo.MessageSend{
		Content: env.Text,
		Files: []*discordgo.File{{
			Name:   attachmentFileName(fileURL),
			Reader: rc,
		}},
	}
	if row := f.quickReplyRow(env.QuickReplies); row != nil {
		msg.Components = []discordgo.MessageComponent{row}
	}
	return []*discordgo.MessageSend{msg}, nil
}

// formatElements expands a list or carousel into a sequence of messages,
// one per element. Element images travel as uploaded files referenced
// via the attachment:// scheme so each embed renders its own image. For
// lists a trailing View More button is appended to the final message
// when pagination says more results exist.
func (f *formatter) formatElements(ctx context.Context, env domain.OutboundEnvelope, list bool) ([]*discordgo.MessageSend, error) {
	msgs := make([]*discordgo.MessageSend, 0, len(env.Elements))
	for idx, el := range env.Elements {
		embed := &discordgo.MessageEmbed{
			Title:       el.Title,
			Description: el.Subtitle,
			URL:         el.URL,
		}
		msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}

		if el.ImageURL != "" {
			name := elementImageName(idx, el.ImageURL)
			rc, err := f.files.Open(ctx, el.ImageURL)
			if err != nil {
				return nil, fmt.Errorf("fetch element %d image: %w", idx, err)
			}
			embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + name}
			msg.Files = []*discordgo.File{{Name: name, Reader: rc}}
		}

		if row := f.buttonRow(el.Buttons, el.URL); row != nil {
			msg.Components = []discordgo.MessageComponent{row}
		}
		msgs = append(msgs, msg)
	}

	if list && len(msgs) > 0 && hasMoreResults(env.Pagination) {
		last := msgs[len(msgs)-1]
		last.Components = append(last.Components, &discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				&discordgo.Button{
					Label:    "View More",
					Style:    discordgo.SecondaryButton,
					CustomID: viewMoreCustomID,
				},
			},
		})
	}
	return msgs, nil
}

func hasMoreResults(p *domain.Pagination) bool {
	return p != nil && p.Total-p.Skip-p.Limit > 0
}

// buttonRow maps envelope buttons onto one action row. Postbacks become
// primary buttons keyed by their payload; web_url buttons become link
// buttons, falling back to the element URL when their own is empty.
func (f *formatter) buttonRow(buttons []domain.Button, fallbackURL string) *discordgo.ActionsRow {
	if len(buttons) == 0 {
		return nil
	}
	if len(buttons) > maxButtonsPerRow {
		f.logger.Warn("too many buttons for one row, truncating",
			"count", len(buttons), "max", maxButtonsPerRow)
		buttons = buttons[:maxButtonsPerRow]
	}
	row := &discordgo.ActionsRow{}
	for _, b := range buttons {
		switch b.Type {
		case domain.ButtonTypeWebURL:
			target := b.URL
			if target == "" {
				target = fallbackURL
			}
			row.Components = append(row.Components, &discordgo.Button{
				Label: b.Title,
				Style: discordgo.LinkButton,
				URL:   target,
			})
		default:
			row.Components = append(row.Components, &discordgo.Button{
				Label:    b.Title,
				Style:    discordgo.PrimaryButton,
				CustomID: b.Payload,
			})
		}
	}
	return row
}

func (f *formatter) quickReplyRow(replies []domain.QuickReply) *discordgo.ActionsRow {
	if len(replies) == 0 {
		return nil
	}
	if len(replies) > maxButtonsPerRow {
		f.logger.Warn("too many quick replies for one row, truncating",
			"count", len(replies), "max", maxButtonsPerRow)
		replies = replies[:maxButtonsPerRow]
	}
	row := &discordgo.ActionsRow{}
	for _, qr := range replies {
		row.Components = append(row.Components, &discordgo.Button{
			Label:    qr.Title,
			Style:    discordgo.SecondaryButton,
			CustomID: qr.Payload,
		})
	}
	return row
}

// elementImageName derives a per-element upload name so the embed's
// attachment:// reference stays unambiguous within its message.
func elementImageName(idx int, imageURL string) string {
	ext := ".png"
	if u, err := url.Parse(imageURL); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = e
		}
	}
	return fmt.Sprintf("element-%d%s", idx, ext)
}

func attachmentFileName(fileURL string) string {
	if u, err := url.Parse(fileURL); err == nil && u.Scheme != "" {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
	}
	if name := filepath.Base(fileURL); name != "." && !strings.HasPrefix(name, string(filepath.Separator)) {
		return name
	}
	return "attachment"
}
