package channel

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// chatCommand is the slash command registered for guilds where mention
// gating makes plain messages awkward. Its single string option carries
// the message text.
var chatCommand = &discordgo.ApplicationCommand{
	Name:        "chat",
	Description: "Send a message to the bot",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "message",
			Description: "What you want to say",
			Required:    true,
		},
	},
}

// RegisterCommands registers the /chat slash command with Discord. When
// GuildID is set the command registers instantly for that guild;
// otherwise it registers globally, which Discord rolls out with a
// delay. This is an admin operation run out of band, so it builds its
// own REST-only session.
func RegisterCommands(settings Settings, logger *slog.Logger) error {
	if settings.BotToken == "" {
		return fmt.Errorf("discord bot token is required to register commands")
	}
	if settings.AppID == "" {
		return fmt.Errorf("discord application id is required to register commands")
	}

	session, err := discordgo.New("Bot " + settings.BotToken)
	if err != nil {
		return fmt.Errorf("discord session setup: %w", err)
	}

	cmd, err := session.ApplicationCommandCreate(settings.AppID, settings.GuildID, chatCommand)
	if err != nil {
		return fmt.Errorf("register /%s command: %w", chatCommand.Name, err)
	}

	scope := "global"
	if settings.GuildID != "" {
		scope = "guild " + settings.GuildID
	}
	logger.Info("slash command registered", "command", cmd.Name, "scope", scope)
	return nil
}
