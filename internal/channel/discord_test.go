package channel

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bwmarrin/discordgo"

	"bridgebot/internal/domain"
)

func testDiscord() *Discord {
	return NewDiscord(DiscordConfig{
		Settings: func() (Settings, error) {
			return Settings{BotToken: "token"}, nil
		},
		Attachments: &fakeFiles{},
		Language:    staticLanguage("en"),
		Logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
}

type staticLanguage string

func (l staticLanguage) DefaultLanguage() string { return string(l) }

func TestDiscord_Name(t *testing.T) {
	if got := testDiscord().Name(); got != "discord-channel" {
		t.Fatalf("unexpected channel name %q", got)
	}
}

func TestDiscord_DisconnectedState(t *testing.T) {
	d := testDiscord()
	if got := d.State(); got != "disconnected" {
		t.Fatalf("expected disconnected before Init, got %q", got)
	}
}

func TestSendMessage_NotConnected(t *testing.T) {
	d := testDiscord()
	ev := wrapMessage(rawMessage("hi"), "bot-1")[0]

	_, err := d.SendMessage(context.Background(), ev, domain.OutboundEnvelope{
		Format: domain.FormatText,
		Text:   "hello",
	}, domain.SendOptions{})
	if !errors.Is(err, ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %v", err)
	}
}

func TestGetUserData_NotConnected(t *testing.T) {
	d := testDiscord()
	ev := wrapMessage(rawMessage("hi"), "bot-1")[0]

	_, err := d.GetUserData(context.Background(), ev)
	if !errors.Is(err, ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %v", err)
	}
}

func TestHandleWebhook_Unsupported(t *testing.T) {
	d := testDiscord()
	req := httptest.NewRequest("POST", "/webhook/discord", nil)
	rec := httptest.NewRecorder()

	if err := d.HandleWebhook(rec, req); !errors.Is(err, ErrWebhookUnsupported) {
		t.Fatalf("expected ErrWebhookUnsupported, got %v", err)
	}
}

func TestStop_WithoutSession(t *testing.T) {
	if err := testDiscord().Stop(); err != nil {
		t.Fatalf("stop without session: %v", err)
	}
}

func TestDisableButtons(t *testing.T) {
	components := []discordgo.MessageComponent{
		&discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				&discordgo.Button{Label: "Confirm", CustomID: "CONFIRM", Style: discordgo.PrimaryButton},
				&discordgo.Button{Label: "Cancel", CustomID: "CANCEL", Style: discordgo.PrimaryButton},
				&discordgo.Button{Label: "Docs", URL: "https://example.com", Style: discordgo.LinkButton},
			},
		},
	}

	out := disableButtons(components, "CONFIRM")
	row := out[0].(*discordgo.ActionsRow)

	clicked := row.Components[0].(*discordgo.Button)
	if !clicked.Disabled {
		t.Error("clicked button should be disabled")
	}
	if clicked.Label != "Confirm ✓" {
		t.Errorf("clicked button should be marked, got %q", clicked.Label)
	}
	if clicked.Style != discordgo.SuccessButton {
		t.Errorf("clicked button should be restyled, got %v", clicked.Style)
	}

	other := row.Components[1].(*discordgo.Button)
	if !other.Disabled {
		t.Error("sibling postback button should be disabled")
	}
	if other.Label != "Cancel" {
		t.Errorf("sibling label must not change, got %q", other.Label)
	}

	link := row.Components[2].(*discordgo.Button)
	if link.Disabled {
		t.Error("link buttons stay clickable")
	}

	// The original row must not be mutated.
	orig := components[0].(*discordgo.ActionsRow).Components[0].(*discordgo.Button)
	if orig.Disabled || orig.Label != "Confirm" {
		t.Errorf("original components were mutated: %+v", orig)
	}
}

func TestStripMention(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"<@bot-1> hello", "hello"},
		{"<@!bot-1> hello", "hello"},
		{"hello <@bot-1> there", "hello  there"},
		{"no mention here", "no mention here"},
	}
	for _, tc := range cases {
		if got := stripMention(tc.in, "bot-1"); got != tc.want {
			t.Errorf("stripMention(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMentionsUser(t *testing.T) {
	mentions := []*discordgo.User{{ID: "u1"}, nil, {ID: "bot-1"}}
	if !mentionsUser(mentions, "bot-1") {
		t.Error("expected mention match")
	}
	if mentionsUser(mentions, "bot-2") {
		t.Error("unexpected mention match")
	}
}

func TestSplitDisplayName(t *testing.T) {
	cases := []struct {
		in          string
		first, last string
	}{
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"Ada", "Ada", ""},
		{"Ada King Lovelace", "Ada", "King Lovelace"},
	}
	for _, tc := range cases {
		first, last := splitDisplayName(tc.in)
		if first != tc.first || last != tc.last {
			t.Errorf("splitDisplayName(%q) = %q/%q, want %q/%q", tc.in, first, last, tc.first, tc.last)
		}
	}
}

func TestTextCapable(t *testing.T) {
	if !textCapable(discordgo.ChannelTypeGuildText) || !textCapable(discordgo.ChannelTypeDM) {
		t.Error("guild text and DM channels must be text capable")
	}
	if textCapable(discordgo.ChannelTypeGuildVoice) {
		t.Error("voice channels are not text capable")
	}
}

func TestRegisterCommands_MissingCredentials(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	if err := RegisterCommands(Settings{AppID: "app"}, logger); err == nil {
		t.Error("expected error without bot token")
	}
	if err := RegisterCommands(Settings{BotToken: "tok"}, logger); err == nil {
		t.Error("expected error without application id")
	}
}
