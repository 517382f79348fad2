package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"bridgebot/internal/domain"
)

// fakeFiles is an in-memory domain.AttachmentService for formatter
// tests.
type fakeFiles struct {
	urls    map[string]string // attachment id -> url
	content map[string]string // url -> body
}

func (f *fakeFiles) Store(ctx context.Context, r io.Reader, meta domain.AttachmentMeta) (*domain.StoredAttachment, error) {
	return &domain.StoredAttachment{ID: "stored-1", Filename: meta.Filename}, nil
}

func (f *fakeFiles) ResolveURL(ctx context.Context, id string) (string, error) {
	url, ok := f.urls[id]
	if !ok {
		return "", fmt.Errorf("attachment %s not found", id)
	}
	return url, nil
}

func (f *fakeFiles) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	body, ok := f.content[url]
	if !ok {
		return nil, fmt.Errorf("no content at %s", url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func testFormatter(files *fakeFiles) *formatter {
	if files == nil {
		files = &fakeFiles{}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &formatter{files: files, logger: logger}
}

func firstRowButtons(t *testing.T, msg *discordgo.MessageSend) []*discordgo.Button {
	t.Helper()
	if len(msg.Components) == 0 {
		t.Fatal("expected a component row")
	}
	row, ok := msg.Components[0].(*discordgo.ActionsRow)
	if !ok {
		t.Fatalf("expected *discordgo.ActionsRow, got %T", msg.Components[0])
	}
	buttons := make([]*discordgo.Button, 0, len(row.Components))
	for _, c := range row.Components {
		btn, ok := c.(*discordgo.Button)
		if !ok {
			t.Fatalf("expected *discordgo.Button, got %T", c)
		}
		buttons = append(buttons, btn)
	}
	return buttons
}

func TestFormat_Text(t *testing.T) {
	msgs, err := testFormatter(nil).Format(context.Background(), domain.OutboundEnvelope{
		Format: domain.FormatText,
		Text:   "plain answer",
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Content != "plain answer" {
		t.Errorf("expected 'plain answer', got %q", msgs[0].Content)
	}
}

func TestFormat_Buttons(t *testing.T) {
	msgs, err := testFormatter(nil).Format(context.Background(), domain.OutboundEnvelope{
		Format: domain.FormatButtons,
		Text:   "pick one",
		Buttons: []domain.Button{
			{Title: "Order", Type: domain.ButtonTypePostback, Payload: "ORDER"},
			{Title: "Website", Type: domain.ButtonTypeWebURL, URL: "https://example.com"},
		},
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	buttons := firstRowButtons(t, msgs[0])
	if len(buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(buttons))
	}
	if buttons[0].Style != discordgo.PrimaryButton || buttons[0].CustomID != "ORDER" {
		t.Errorf("postback button mapped wrong: %+v", buttons[0])
	}
	if buttons[1].Style != discordgo.LinkButton || buttons[1].URL != "https://example.com" {
		t.Errorf("link button mapped wrong: %+v", buttons[1])
	}
	if buttons[1].CustomID != "" {
		t.Errorf("link buttons must not carry a custom id, got %q", buttons[1].CustomID)
	}
}

func TestFormat_QuickRepliesTruncated(t *testing.T) {
	replies := make([]domain.QuickReply, 7)
	for i := range replies {
		replies[i] = domain.QuickReply{Title: fmt.Sprintf("Option %d", i), Payload: fmt.Sprintf("OPT_%d", i)}
	}

	msgs, err := testFormatter(nil).Format(context.Background(), domain.OutboundEnvelope{
		Format:       domain.FormatQuickReplies,
		Text:         "choose",
		QuickReplies: replies,
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	buttons := firstRowButtons(t, msgs[0])
	if len(buttons) != maxButtonsPerRow {
		t.Fatalf("expected truncation to %d buttons, got %d", maxButtonsPerRow, len(buttons))
	}
	if buttons[0].CustomID != "OPT_0" {
		t.Errorf("expected first reply kept, got %q", buttons[0].CustomID)
	}
}

func TestFormat_Attachment(t *testing.T) {
	files := &fakeFiles{
		urls:    map[string]string{"att-9": "https://cdn.example.com/files/report.pdf"},
		content: map[string]string{"https://cdn.example.com/files/report.pdf": "pdf bytes"},
	}

	msgs, err := testFormatter(files).Format(context.Background(), domain.OutboundEnvelope{
		Format:       domain.FormatAttachment,
		Text:         "here you go",
		AttachmentID: "att-9",
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if len(msgs[0].Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(msgs[0].Files))
	}
	if msgs[0].Files[0].Name != "report.pdf" {
		t.Errorf("expected report.pdf, got %q", msgs[0].Files[0].Name)
	}

	data, err := io.ReadAll(msgs[0].Files[0].Reader)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("unexpected file body %q", data)
	}
}

func TestFormat_AttachmentUnresolvable(t *testing.T) {
	_, err := testFormatter(nil).Format(context.Background(), domain.OutboundEnvelope{
		Format:       domain.FormatAttachment,
		AttachmentID: "missing",
	})
	if err == nil {
		t.Fatal("expected error for unresolvable attachment")
	}
}

func TestFormat_CarouselOneMessagePerElement(t *testing.T) {
	files := &fakeFiles{content: map[string]string{
		"https://cdn.example.com/one.png": "1",
		"https://cdn.example.com/two.jpg": "2",
	}}

	msgs, err := testFormatter(files).Format(context.Background(), domain.OutboundEnvelope{
		Format: domain.FormatCarousel,
		Elements: []domain.Element{
			{
				Title:    "First",
				Subtitle: "first sub",
				ImageURL: "https://cdn.example.com/one.png",
				Buttons:  []domain.Button{{Title: "Buy", Type: domain.ButtonTypePostback, Payload: "BUY_1"}},
			},
			{
				Title:    "Second",
				ImageURL: "https://cdn.example.com/two.jpg",
				URL:      "https://example.com/second",
				Buttons:  []domain.Button{{Title: "Open", Type: domain.ButtonTypeWebURL}},
			},
			{Title: "Third"},
		},
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected one message per element, got %d", len(msgs))
	}

	// Each element's embed, image file and buttons stay on its own
	// message.
	first := msgs[0]
	if first.Embeds[0].Title != "First" || first.Embeds[0].Description != "first sub" {
		t.Errorf("first embed wrong: %+v", first.Embeds[0])
	}
	if len(first.Files) != 1 || first.Files[0].Name != "element-0.png" {
		t.Fatalf("first element file wrong: %+v", first.Files)
	}
	if first.Embeds[0].Image.URL != "attachment://element-0.png" {
		t.Errorf("first embed image should reference its upload, got %q", first.Embeds[0].Image.URL)
	}
	if firstRowButtons(t, first)[0].CustomID != "BUY_1" {
		t.Errorf("first element button lost")
	}

	second := msgs[1]
	if len(second.Files) != 1 || second.Files[0].Name != "element-1.jpg" {
		t.Fatalf("second element file wrong: %+v", second.Files)
	}
	// web_url button without its own URL falls back to the element URL.
	if got := firstRowButtons(t, second)[0].URL; got != "https://example.com/second" {
		t.Errorf("expected element URL fallback, got %q", got)
	}

	third := msgs[2]
	if len(third.Files) != 0 {
		t.Errorf("third element has no image, got files %+v", third.Files)
	}
	if len(third.Components) != 0 {
		t.Errorf("third element has no buttons, got %+v", third.Components)
	}
}

func TestFormat_CarouselImageFetchFails(t *testing.T) {
	_, err := testFormatter(nil).Format(context.Background(), domain.OutboundEnvelope{
		Format:   domain.FormatCarousel,
		Elements: []domain.Element{{Title: "Broken", ImageURL: "https://nowhere.example.com/x.png"}},
	})
	if err == nil {
		t.Fatal("expected error when an element image cannot be fetched")
	}
}

func TestFormat_ListPagination(t *testing.T) {
	f := testFormatter(nil)

	// 50 total, showing 0..10: more results exist, so the last message
	// gets a View More button.
	msgs, err := f.Format(context.Background(), domain.OutboundEnvelope{
		Format:     domain.FormatList,
		Elements:   []domain.Element{{Title: "A"}, {Title: "B"}},
		Pagination: &domain.Pagination{Total: 50, Skip: 0, Limit: 10},
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if len(msgs[0].Components) != 0 {
		t.Errorf("View More belongs on the last message only")
	}

	last := msgs[len(msgs)-1]
	buttons := firstRowButtons(t, last)
	if len(buttons) != 1 || buttons[0].CustomID != viewMoreCustomID {
		t.Fatalf("expected a single %s button, got %+v", viewMoreCustomID, buttons)
	}
	if buttons[0].Label != "View More" {
		t.Errorf("expected View More label, got %q", buttons[0].Label)
	}
}

func TestFormat_ListLastPageHasNoViewMore(t *testing.T) {
	msgs, err := testFormatter(nil).Format(context.Background(), domain.OutboundEnvelope{
		Format:     domain.FormatList,
		Elements:   []domain.Element{{Title: "A"}},
		Pagination: &domain.Pagination{Total: 50, Skip: 40, Limit: 10},
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	for _, msg := range msgs {
		if len(msg.Components) != 0 {
			t.Fatalf("no View More expected on the last page, got %+v", msg.Components)
		}
	}
}

func TestFormat_UnknownFormatRejected(t *testing.T) {
	msgs, err := testFormatter(nil).Format(context.Background(), domain.OutboundEnvelope{
		Format: domain.MessageFormat("hologram"),
	})
	if !errors.Is(err, ErrUnsupportedMessageFormat) {
		t.Fatalf("expected ErrUnsupportedMessageFormat, got %v", err)
	}
	if msgs != nil {
		t.Fatalf("nothing must be produced for an unknown format, got %d messages", len(msgs))
	}
}
