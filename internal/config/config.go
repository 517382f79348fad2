package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for bridgebot.
type Config struct {
	General     GeneralConfig     `json:"general"`
	Channels    ChannelsConfig    `json:"channels"`
	Attachments AttachmentsConfig `json:"attachments"`
	Subscribers SubscribersConfig `json:"subscribers"`
	Bus         BusConfig         `json:"bus"`
}

type GeneralConfig struct {
	DataDir         string `json:"dataDir"`
	LogLevel        string `json:"logLevel"` // "debug" | "info" | "warn" | "error"
	DefaultLanguage string `json:"defaultLanguage"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

// DiscordConfig is the settings record the Discord channel reads on
// every Init. BotToken and AppID are mutable at runtime: edit the file
// (or the env vars it references) and re-init the channel.
type DiscordConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	AppID    string `json:"appId"`
	GuildID  string `json:"guildId,omitempty"` // optional: restrict to specific guild
}

type AttachmentsConfig struct {
	StoragePath   string `json:"storagePath"`
	PublicBaseURL string `json:"publicBaseUrl"`
	MaxSizeMB     int64  `json:"maxSizeMB"`
	DBPath        string `json:"dbPath"`
}

type SubscribersConfig struct {
	DBPath string `json:"dbPath"`
}

type BusConfig struct {
	BufferSize int `json:"bufferSize"`
}

// DefaultConfigDir returns the default config directory (~/.bridgebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bridgebot"
	}
	return filepath.Join(home, ".bridgebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.Attachments.StoragePath = ExpandPath(cfg.Attachments.StoragePath)
	cfg.Attachments.DBPath = ExpandPath(cfg.Attachments.DBPath)
	cfg.Subscribers.DBPath = ExpandPath(cfg.Subscribers.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.DefaultLanguage == "" {
		errs = append(errs, "general.defaultLanguage must not be empty")
	}

	if cfg.Attachments.MaxSizeMB < 1 {
		errs = append(errs, "attachments.maxSizeMB must be >= 1")
	}
	if cfg.Bus.BufferSize < 1 {
		errs = append(errs, "bus.bufferSize must be >= 1")
	}

	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.BotToken == "" {
		errs = append(errs, "channels.discord.botToken is required when the channel is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
