package config

import "path/filepath"

// Defaults returns a config populated with sensible defaults.
func Defaults() *Config {
	dataDir := filepath.Join(DefaultConfigDir(), "data")
	return &Config{
		General: GeneralConfig{
			DataDir:         dataDir,
			LogLevel:        "info",
			DefaultLanguage: "en",
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Enabled: false,
			},
		},
		Attachments: AttachmentsConfig{
			StoragePath:   filepath.Join(dataDir, "attachments"),
			PublicBaseURL: "",
			MaxSizeMB:     50,
			DBPath:        filepath.Join(dataDir, "attachments.db"),
		},
		Subscribers: SubscribersConfig{
			DBPath: filepath.Join(dataDir, "subscribers.db"),
		},
		Bus: BusConfig{
			BufferSize: 100,
		},
	}
}
