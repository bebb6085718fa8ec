package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/g960059/ttguide/internal/model"
)

type fileConfig struct {
	DBPath         string                       `yaml:"db_path"`
	TmuxBinary     string                       `yaml:"tmux_binary"`
	SessionPrefix  string                       `yaml:"session_prefix"`
	Target         *fileTarget                  `yaml:"target"`
	ConnectTimeout string                       `yaml:"connect_timeout"`
	CommandTimeout string                       `yaml:"command_timeout"`
	Channels       map[string]fileChannelConfig `yaml:"channels"`
	TemplateFile   string                       `yaml:"template_file"`
	EnvFile        string                       `yaml:"env_file"`
	Variables      map[string]string            `yaml:"variables"`
	LogLevel       string                       `yaml:"log_level"`
	ServerHost     string                       `yaml:"server_host"`
	ProbeTimeout   string                       `yaml:"probe_timeout"`
	Monitor        *fileMonitor                 `yaml:"monitor"`
}

type fileTarget struct {
	Kind          string `yaml:"kind"`
	ConnectionRef string `yaml:"connection_ref"`
}

type fileChannelConfig struct {
	DisplayName string `yaml:"display_name"`
	Cwd         string `yaml:"cwd"`
}

type fileMonitor struct {
	Command          []string `yaml:"command"`
	DownWindow       string   `yaml:"down_window"`
	DownFailures     int      `yaml:"down_failures"`
	RecoverSuccesses int      `yaml:"recover_successes"`
}

// Load overlays the YAML file at path onto DefaultConfig. A missing file
// yields the defaults.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = cfg.ConfigPath
	}
	cfg.ConfigPath = path

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := fc.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) error {
	setString(&cfg.DBPath, expandHome(fc.DBPath))
	setString(&cfg.TmuxBinary, fc.TmuxBinary)
	setString(&cfg.SessionPrefix, fc.SessionPrefix)
	setString(&cfg.TemplateFile, expandHome(fc.TemplateFile))
	setString(&cfg.EnvFile, expandHome(fc.EnvFile))
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.ServerHost, fc.ServerHost)

	if fc.Target != nil {
		kind := model.TargetKind(strings.ToLower(strings.TrimSpace(fc.Target.Kind)))
		switch kind {
		case "", model.TargetKindLocal:
			cfg.Target = model.Target{Kind: model.TargetKindLocal}
		case model.TargetKindSSH:
			ref := strings.TrimSpace(fc.Target.ConnectionRef)
			if ref == "" {
				return fmt.Errorf("ssh target requires connection_ref")
			}
			cfg.Target = model.Target{Kind: model.TargetKindSSH, ConnectionRef: ref}
		default:
			return fmt.Errorf("unsupported target kind: %s", fc.Target.Kind)
		}
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{fc.ConnectTimeout, &cfg.ConnectTimeout, "connect_timeout"},
		{fc.CommandTimeout, &cfg.CommandTimeout, "command_timeout"},
		{fc.ProbeTimeout, &cfg.ProbeTimeout, "probe_timeout"},
	} {
		if err := setDuration(d.dst, d.raw, d.key); err != nil {
			return err
		}
	}

	for id, ch := range fc.Channels {
		channelID := model.ChannelID(strings.TrimSpace(id))
		if channelID == "" {
			return fmt.Errorf("channel id is required")
		}
		cur := cfg.Channels[channelID]
		setString(&cur.DisplayName, ch.DisplayName)
		setString(&cur.Cwd, expandHome(ch.Cwd))
		cfg.Channels[channelID] = cur
	}
	for k, v := range fc.Variables {
		cfg.Variables[k] = v
	}

	if fc.Monitor != nil {
		if len(fc.Monitor.Command) > 0 {
			cfg.MonitorCommand = append([]string(nil), fc.Monitor.Command...)
		}
		if err := setDuration(&cfg.DeviceDownWindow, fc.Monitor.DownWindow, "monitor.down_window"); err != nil {
			return err
		}
		if fc.Monitor.DownFailures > 0 {
			cfg.DeviceDownFailures = fc.Monitor.DownFailures
		}
		if fc.Monitor.RecoverSuccesses > 0 {
			cfg.DeviceRecoverSuccesses = fc.Monitor.RecoverSuccesses
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw, key string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s: must be positive", key)
	}
	*dst = d
	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	p = strings.TrimSpace(p)
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return homeDir() + p[1:]
	}
	return p
}
