package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridgebot/internal/attachment"
	"bridgebot/internal/bus"
	"bridgebot/internal/channel"
	"bridgebot/internal/config"
	"bridgebot/internal/domain"
	"bridgebot/internal/lang"
	"bridgebot/internal/subscriber"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "bridgebot",
		Short: "Bridgebot: multi-channel chatbot gateway",
		Long:  "Bridgebot connects chat platforms to a canonical event stream. Discord is the first supported channel.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.bridgebot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(registerCommandsCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "data", cfg.General.DataDir)
			return nil
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the gateway (all enabled channels)",
		Long:  "Starts all enabled channels and routes their events. SIGHUP re-reads the config and reconnects; Ctrl+C stops.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	}))

	if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(cfg.Bus.BufferSize, logger)

	files, err := attachment.New(attachment.Config{
		StoragePath:   cfg.Attachments.StoragePath,
		DBPath:        cfg.Attachments.DBPath,
		PublicBaseURL: cfg.Attachments.PublicBaseURL,
		MaxSizeBytes:  cfg.Attachments.MaxSizeMB * 1024 * 1024,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("attachment service: %w", err)
	}
	defer files.Close()

	subscribers, err := subscriber.NewSQLiteStore(cfg.Subscribers.DBPath, logger)
	if err != nil {
		return fmt.Errorf("subscriber store: %w", err)
	}
	defer subscribers.Close()

	language := lang.New(cfg.General.DefaultLanguage)

	discord := channel.NewDiscord(channel.DiscordConfig{
		Settings:    discordSettings(cfgPath),
		Attachments: files,
		Subscribers: subscribers,
		Language:    language,
		Logger:      logger,
	})

	if cfg.Channels.Discord.Enabled {
		if err := discord.Init(ctx, messageBus); err != nil {
			return fmt.Errorf("discord init: %w", err)
		}
	} else {
		logger.Info("discord channel disabled")
	}

	// The delivery side: envelopes dispatched to this channel go out
	// through SendMessage.
	messageBus.OnDelivery(discord.Name(), func(d domain.Delivery) {
		result, err := discord.SendMessage(ctx, d.Event, d.Envelope, d.Options)
		if err != nil {
			logger.Error("delivery failed", "channel", discord.Name(), "err", err)
			return
		}
		logger.Debug("delivered", "channel", discord.Name(), "mid", result.MID)
	})

	go consumeEvents(ctx, messageBus, discord)

	// SIGHUP re-reads the settings and reconnects the channel.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("SIGHUP received, reconnecting channels")
				if err := discord.Init(ctx, messageBus); err != nil {
					logger.Error("discord re-init failed", "err", err)
				}
			}
		}
	}()

	logger.Info("gateway started, press Ctrl+C to stop", "version", version)
	<-ctx.Done()
	logger.Info("shutting down gateway...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := discord.Stop(); err != nil {
			logger.Warn("discord stop", "err", err)
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

// consumeEvents drains the inbound side of the bus. Without a bot brain
// attached the gateway logs each normalized event and refreshes the
// sender's profile, which is enough to exercise the full inbound path.
func consumeEvents(ctx context.Context, messageBus *bus.InMemoryBus, discord *channel.Discord) {
	for he := range messageBus.Subscribe() {
		ev := he.Event
		logger.Info("event received",
			"hook", he.Hook,
			"event_id", ev.ID(),
			"event_type", ev.EventType(),
			"message_type", ev.MessageType(),
			"sender", ev.SenderForeignID(),
		)
		if ev.EventType() != domain.EventTypeMessage {
			continue
		}
		if _, err := discord.GetUserData(ctx, ev); err != nil {
			logger.Warn("profile refresh failed", "sender", ev.SenderForeignID(), "err", err)
		}
	}
}

// discordSettings reads the channel credentials from the config file on
// every call, so a SIGHUP reconnect picks up edited values.
func discordSettings(cfgPath string) channel.SettingsFunc {
	return func() (channel.Settings, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return channel.Settings{}, fmt.Errorf("load config: %w", err)
		}
		return channel.Settings{
			BotToken: cfg.Channels.Discord.BotToken,
			AppID:    cfg.Channels.Discord.AppID,
			GuildID:  cfg.Channels.Discord.GuildID,
		}, nil
	}
}

func registerCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register-commands",
		Short: "Register the Discord slash commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := discordSettings(resolveConfigPath())()
			if err != nil {
				return err
			}
			return channel.RegisterCommands(settings, logger)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)
			logger.Info("channel",
				"name", channel.ChannelName,
				"enabled", cfg.Channels.Discord.Enabled,
				"token_set", cfg.Channels.Discord.BotToken != "",
			)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. channels.discord.enabled)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. channels.discord.enabled true)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
