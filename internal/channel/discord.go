package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"bridgebot/internal/domain"
)

// ChannelName identifies this adapter to the host platform.
const ChannelName = "discord-channel"

// HookMessage is the hook every normalized Discord event is published
// under.
const HookMessage = ChannelName + ".message"

// Settings are the mutable Discord credentials. They are read through a
// SettingsFunc on every Init so runtime credential changes take effect
// on the next reconnect.
type Settings struct {
	BotToken string
	AppID    string
	GuildID  string
}

// SettingsFunc supplies the current settings at connect time.
type SettingsFunc func() (Settings, error)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateReady
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// DiscordConfig wires a Discord adapter to the host services.
type DiscordConfig struct {
	Settings    SettingsFunc
	Attachments domain.AttachmentService
	Subscribers domain.SubscriberStore
	Language    domain.LanguageService
	Logger      *slog.Logger
}

// Discord adapts the Discord gateway to the host's channel contract:
// gateway events are normalized and published on the bus, outgoing
// envelopes are rendered into Discord messages.
type Discord struct {
	settings    SettingsFunc
	files       domain.AttachmentService
	subscribers domain.SubscriberStore
	language    domain.LanguageService
	logger      *slog.Logger
	format      *formatter

	mu      sync.Mutex
	state   connState
	session *discordgo.Session
	bus     domain.EventBus
}

var _ domain.Channel = (*Discord)(nil)

func NewDiscord(cfg DiscordConfig) *Discord {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("channel", ChannelName)
	return &Discord{
		settings:    cfg.Settings,
		files:       cfg.Attachments,
		subscribers: cfg.Subscribers,
		language:    cfg.Language,
		logger:      logger,
		format:      &formatter{files: cfg.Attachments, logger: logger},
	}
}

func (d *Discord) Name() string { return ChannelName }

// Init opens the gateway connection. It is safe to call repeatedly: an
// existing session is torn down first, so a settings change is applied
// by calling Init again. Connection failures are logged and leave the
// channel disconnected; they never propagate, so a bad token cannot
// take the host down.
func (d *Discord) Init(ctx context.Context, bus domain.EventBus) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.bus = bus
	if d.session != nil {
		if err := d.session.Close(); err != nil {
			d.logger.Warn("closing previous session", "err", err)
		}
		d.session = nil
	}
	d.state = stateDisconnected

	settings, err := d.settings()
	if err != nil {
		d.logger.Error("discord settings unavailable", "err", err)
		return nil
	}
	if settings.BotToken == "" {
		d.logger.Error("discord bot token not configured, channel stays disconnected")
		return nil
	}

	d.state = stateConnecting
	session, err := discordgo.New("Bot " + settings.BotToken)
	if err != nil {
		d.logger.Error("discord session setup failed", "err", err)
		d.state = stateDisconnected
		return nil
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	// Handlers must observe events in gateway arrival order.
	session.SyncEvents = true
	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onInteractionCreate)

	if err := session.Open(); err != nil {
		d.logger.Error("discord gateway connection failed", "err", err)
		d.state = stateDisconnected
		return nil
	}

	d.session = session
	d.state = stateReady
	d.logger.Info("discord channel connected", "bot", session.State.User.Username)
	return nil
}

func (d *Discord) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	d.state = stateDisconnected
	if err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

// State reports the current connection state.
func (d *Discord) State() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.String()
}

// onMessageCreate filters raw gateway messages and publishes the
// canonical events for those that pass. Filter order matters: system
// messages and non-text channels are dropped before the mention gate,
// and the bot's own echoes are dropped last, after mention stripping.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	if m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply {
		return
	}

	ch, err := d.channelInfo(s, m.ChannelID)
	if err != nil {
		d.logger.Error("channel lookup failed", "channel_id", m.ChannelID, "err", err)
		return
	}
	if !textCapable(ch.Type) {
		return
	}

	botID := s.State.User.ID
	content := m.Content
	if isGuildChannel(ch.Type) {
		// Guild participation is opt-in per message via @mention.
		if !mentionsUser(m.Mentions, botID) {
			return
		}
		content = stripMention(content, botID)
	}
	if m.Author.ID == botID {
		d.logger.Debug("own echo ignored", "message_id", m.ID)
		return
	}

	msg := *m.Message
	msg.Content = content
	for _, ev := range wrapMessage(&msg, botID) {
		if ev.EventType() == domain.EventTypeUnknown {
			d.logger.Error("event not recognized, dropping",
				"message_id", m.ID, "channel_id", m.ChannelID)
			continue
		}
		d.publish(ev)
	}
}

func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		// Ack immediately so Discord never shows "interaction failed"
		// while downstream processing runs.
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		}); err != nil {
			d.logger.Error("interaction ack failed", "interaction_id", i.ID, "err", err)
		}
		go d.disableClickedRow(s, i)

	case discordgo.InteractionApplicationCommand:
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		}); err != nil {
			d.logger.Error("interaction ack failed", "interaction_id", i.ID, "err", err)
		}

	default:
		return
	}

	ev, err := wrapInteraction(i.Interaction)
	if err != nil {
		d.logger.Error("interaction dropped", "interaction_id", i.ID, "err", err)
		return
	}
	if ev.EventType() == domain.EventTypeUnknown {
		d.logger.Error("interaction not recognized, dropping", "interaction_id", i.ID)
		return
	}
	d.publish(ev)
}

func (d *Discord) publish(ev domain.CanonicalEvent) {
	d.mu.Lock()
	bus := d.bus
	d.mu.Unlock()
	if bus == nil {
		d.logger.Error("no bus attached, event lost", "event_id", ev.ID())
		return
	}
	bus.Emit(HookMessage, ev)
}

// disableClickedRow rewrites the clicked message's components so every
// non-link button is disabled and the clicked one is marked as chosen.
// Runs off the gateway goroutine; a failed edit only loses the visual
// feedback, never the postback itself.
func (d *Discord) disableClickedRow(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Message == nil {
		return
	}
	clicked := i.MessageComponentData().CustomID
	rows := disableButtons(i.Message.Components, clicked)
	edit := discordgo.NewMessageEdit(i.ChannelID, i.Message.ID)
	edit.Components = &rows
	if _, err := s.ChannelMessageEditComplex(edit); err != nil {
		d.logger.Warn("disabling clicked buttons failed",
			"message_id", i.Message.ID, "err", err)
	}
}

// disableButtons returns a copy of the component rows with all non-link
// buttons disabled and the clicked button restyled as the confirmed
// choice.
func disableButtons(components []discordgo.MessageComponent, clickedID string) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(components))
	for _, comp := range components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			out = append(out, comp)
			continue
		}
		newRow := &discordgo.ActionsRow{}
		for _, rc := range row.Components {
			btn, ok := rc.(*discordgo.Button)
			if !ok {
				newRow.Components = append(newRow.Components, rc)
				continue
			}
			b := *btn
			if b.Style != discordgo.LinkButton {
				b.Disabled = true
				if b.CustomID == clickedID {
					b.Label += " ✓"
					b.Style = discordgo.SuccessButton
				}
			}
			newRow.Components = append(newRow.Components, &b)
		}
		out = append(out, newRow)
	}
	return out
}

// SendMessage renders the envelope and delivers it to the conversation
// that produced the triggering event. Multi-message sequences (list,
// carousel) are sent one at a time, each awaited, so elements land in
// order; the returned MID is the last message's id.
func (d *Discord) SendMessage(ctx context.Context, event domain.CanonicalEvent, env domain.OutboundEnvelope, opts domain.SendOptions) (domain.SendResult, error) {
	s := d.currentSession()
	if s == nil {
		return domain.SendResult{}, fmt.Errorf("discord session not connected: %w", ErrChannelUnavailable)
	}

	channelID := event.RecipientForeignID()
	ch, err := d.channelInfo(s, channelID)
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("fetch channel %s: %v: %w", channelID, err, ErrChannelUnavailable)
	}
	if !textCapable(ch.Type) {
		return domain.SendResult{}, fmt.Errorf("channel %s (type %d) cannot receive messages: %w", channelID, ch.Type, ErrChannelUnavailable)
	}

	if opts.Typing {
		if err := s.ChannelTyping(channelID); err != nil {
			d.logger.Warn("typing indicator failed", "channel_id", channelID, "err", err)
		}
	}

	msgs, err := d.format.Format(ctx, env)
	if err != nil {
		return domain.SendResult{}, err
	}

	var mid string
	for _, msg := range msgs {
		sent, err := s.ChannelMessageSendComplex(channelID, msg)
		if err != nil {
			return domain.SendResult{}, fmt.Errorf("send to channel %s: %w", channelID, err)
		}
		mid = sent.ID
	}
	return domain.SendResult{MID: mid}, nil
}

// GetUserData builds and persists a subscriber profile for the event's
// sender. Guild channels surface the server and channel names; direct
// messages surface the human recipient. The avatar is fetched into the
// attachment store, but a failed fetch only costs the avatar, never the
// profile.
func (d *Discord) GetUserData(ctx context.Context, event domain.CanonicalEvent) (domain.SubscriberProfile, error) {
	s := d.currentSession()
	if s == nil {
		return domain.SubscriberProfile{}, fmt.Errorf("discord session not connected: %w", ErrChannelUnavailable)
	}

	ch, err := d.channelInfo(s, event.SenderForeignID())
	if err != nil {
		return domain.SubscriberProfile{}, fmt.Errorf("fetch channel %s: %v: %w", event.SenderForeignID(), err, ErrUnresolvableProfile)
	}

	var first, last, avatarURL string
	switch {
	case isGuildChannel(ch.Type):
		guild, err := d.guildInfo(s, ch.GuildID)
		if err != nil {
			return domain.SubscriberProfile{}, fmt.Errorf("fetch guild %s: %v: %w", ch.GuildID, err, ErrUnresolvableProfile)
		}
		first, last = guild.Name, ch.Name
		avatarURL = guild.IconURL("256")

	case ch.Type == discordgo.ChannelTypeDM:
		if len(ch.Recipients) == 0 {
			return domain.SubscriberProfile{}, fmt.Errorf("direct channel %s has no recipient: %w", ch.ID, ErrUnresolvableProfile)
		}
		user := ch.Recipients[0]
		first, last = splitDisplayName(displayName(user))
		avatarURL = user.AvatarURL("256")

	default:
		return domain.SubscriberProfile{}, fmt.Errorf("channel type %d has no sender rule: %w", ch.Type, ErrUnresolvableProfile)
	}

	profile := domain.SubscriberProfile{
		ForeignID: event.SenderForeignID(),
		FirstName: first,
		LastName:  last,
		Locale:    d.language.DefaultLanguage(),
		UpdatedAt: time.Now(),
	}
	if avatarURL != "" {
		profile.AvatarAttachmentID = d.storeAvatar(ctx, avatarURL)
	}

	if d.subscribers != nil {
		if err := d.subscribers.Upsert(ctx, profile); err != nil {
			d.logger.Error("subscriber upsert failed", "foreign_id", profile.ForeignID, "err", err)
		}
	}
	return profile, nil
}

func (d *Discord) storeAvatar(ctx context.Context, avatarURL string) string {
	rc, err := d.files.Open(ctx, avatarURL)
	if err != nil {
		d.logger.Warn("avatar fetch failed", "url", avatarURL, "err", err)
		return ""
	}
	defer rc.Close()
	stored, err := d.files.Store(ctx, rc, domain.AttachmentMeta{
		Filename: "avatar.png",
		MimeType: "image/png",
	})
	if err != nil {
		d.logger.Warn("avatar store failed", "err", err)
		return ""
	}
	return stored.ID
}

// HandleWebhook always fails: Discord delivers over the gateway
// connection, not webhooks.
func (d *Discord) HandleWebhook(w http.ResponseWriter, r *http.Request) error {
	return fmt.Errorf("%s delivers over a gateway connection: %w", ChannelName, ErrWebhookUnsupported)
}

func (d *Discord) currentSession() *discordgo.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// channelInfo prefers the session state cache and falls back to the
// REST API on a miss.
func (d *Discord) channelInfo(s *discordgo.Session, id string) (*discordgo.Channel, error) {
	if ch, err := s.State.Channel(id); err == nil {
		return ch, nil
	}
	return s.Channel(id)
}

func (d *Discord) guildInfo(s *discordgo.Session, id string) (*discordgo.Guild, error) {
	if g, err := s.State.Guild(id); err == nil {
		return g, nil
	}
	return s.Guild(id)
}

func textCapable(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeDM, discordgo.ChannelTypeGuildNews:
		return true
	default:
		return false
	}
}

func isGuildChannel(t discordgo.ChannelType) bool {
	return t == discordgo.ChannelTypeGuildText || t == discordgo.ChannelTypeGuildNews
}

func mentionsUser(mentions []*discordgo.User, userID string) bool {
	for _, u := range mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

// stripMention removes the bot's mention tokens (both the plain and the
// nickname form) from guild message text.
func stripMention(content, userID string) string {
	content = strings.ReplaceAll(content, "<@"+userID+">", "")
	content = strings.ReplaceAll(content, "<@!"+userID+">", "")
	return strings.TrimSpace(content)
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// splitDisplayName maps a display name onto the first/last name pair of
// a subscriber profile.
func splitDisplayName(name string) (string, string) {
	first, last, found := strings.Cut(strings.TrimSpace(name), " ")
	if !found {
		return first, ""
	}
	return first, strings.TrimSpace(last)
}
