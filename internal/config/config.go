package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/g960059/ttguide/internal/model"
)

type ChannelConfig struct {
	DisplayName string
	Cwd         string
}

type Config struct {
	ConfigPath             string
	DBPath                 string
	TmuxBinary             string
	SessionPrefix          string
	Target                 model.Target
	ConnectTimeout         time.Duration
	CommandTimeout         time.Duration
	Channels               map[model.ChannelID]ChannelConfig
	TemplateFile           string
	EnvFile                string
	Variables              map[string]string
	LogLevel               string
	ServerHost             string
	ProbeTimeout           time.Duration
	MonitorCommand         []string
	DeviceDownWindow       time.Duration
	DeviceDownFailures     int
	DeviceRecoverSuccesses int
}

func DefaultConfig() Config {
	home := homeDir()
	return Config{
		ConfigPath:     defaultConfigPath(),
		DBPath:         defaultDBPath(),
		TmuxBinary:     "tmux",
		SessionPrefix:  "ttguide",
		Target:         model.Target{Kind: model.TargetKindLocal},
		ConnectTimeout: 3 * time.Second,
		CommandTimeout: 5 * time.Second,
		Channels: map[model.ChannelID]ChannelConfig{
			model.ChannelMain:   {DisplayName: "Tenstorrent", Cwd: home},
			model.ChannelServer: {DisplayName: "TT Server", Cwd: home},
		},
		Variables:              map[string]string{},
		LogLevel:               "INFO",
		ServerHost:             "127.0.0.1",
		ProbeTimeout:           2 * time.Second,
		MonitorCommand:         []string{"tt-smi", "-s"},
		DeviceDownWindow:       60 * time.Second,
		DeviceDownFailures:     3,
		DeviceRecoverSuccesses: 2,
	}
}

// Channel returns the configured channel, falling back to the channel id as
// display name and the home directory as working directory.
func (c Config) Channel(id model.ChannelID) ChannelConfig {
	ch, ok := c.Channels[id]
	if !ok {
		ch = ChannelConfig{}
	}
	if ch.DisplayName == "" {
		ch.DisplayName = string(id)
	}
	if ch.Cwd == "" {
		ch.Cwd = homeDir()
	}
	return ch
}

// ChannelIDs returns the configured channels sorted by id.
func (c Config) ChannelIDs() []model.ChannelID {
	ids := make([]model.ChannelID, 0, len(c.Channels))
	for id := range c.Channels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func defaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "ttguide", "config.yaml")
	}
	return filepath.Join(homeDir(), ".config", "ttguide", "config.yaml")
}

func defaultDBPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "ttguide", "state.db")
	}
	return filepath.Join(homeDir(), ".local", "state", "ttguide", "state.db")
}
