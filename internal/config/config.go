// Package config provides YAML-based configuration loading for Atrium.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Atrium configuration, loaded from atrium.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Backend BackendConfig `yaml:"backend"`
	Poll    PollConfig    `yaml:"poll"`
	Notify  NotifyConfig  `yaml:"notify"`
	Digest  DigestConfig  `yaml:"digest"`
}

// ServerConfig holds settings for the backend server (`atrium serve`).
type ServerConfig struct {
	Port int      `yaml:"port"`
	DB   DBConfig `yaml:"db"`
}

// DBConfig holds connection settings for the rooms database.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// GatewayConfig points the server at an upstream agent gateway that owns
// the live session collection. Optional: without it the server starts
// with an empty fleet.
type GatewayConfig struct {
	URL string `yaml:"url"`
}

// BackendConfig points client commands (`atrium watch`) at an Atrium server.
type BackendConfig struct {
	URL string `yaml:"url"`
}

// PollConfig controls the session polling fallback cadence.
type PollConfig struct {
	IntervalSec    int `yaml:"interval_sec"`
	MaxIntervalSec int `yaml:"max_interval_sec"`
}

// Interval returns the base poll interval.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSec) * time.Second
}

// MaxInterval returns the backoff cap.
func (p PollConfig) MaxInterval() time.Duration {
	return time.Duration(p.MaxIntervalSec) * time.Second
}

// NotifyConfig controls how fleet events are delivered to humans.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Command string        `yaml:"command"`
}

// SlackConfig holds Slack delivery settings.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig holds Discord delivery settings.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DigestConfig schedules the periodic fleet digest.
type DigestConfig struct {
	Schedule string `yaml:"schedule"` // 5-field cron expression
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.DB.Driver == "" {
		c.Server.DB.Driver = "sqlite"
	}
	if c.Server.DB.Driver == "sqlite" && c.Server.DB.Path == "" {
		c.Server.DB.Path = "atrium.db"
	}
	if c.Server.DB.Driver == "mysql" {
		if c.Server.DB.Host == "" {
			c.Server.DB.Host = "127.0.0.1"
		}
		if c.Server.DB.Port == 0 {
			c.Server.DB.Port = 3306
		}
		if c.Server.DB.Database == "" {
			c.Server.DB.Database = "atrium"
		}
	}
	if c.Backend.URL == "" {
		c.Backend.URL = fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
	}
	if c.Poll.IntervalSec == 0 {
		c.Poll.IntervalSec = 5
	}
	if c.Poll.MaxIntervalSec == 0 {
		c.Poll.MaxIntervalSec = 60
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	switch c.Server.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("server.db.driver %q is not supported (sqlite, mysql)", c.Server.DB.Driver))
	}
	if c.Poll.IntervalSec < 1 {
		errs = append(errs, "poll.interval_sec must be at least 1")
	}
	if c.Poll.MaxIntervalSec < c.Poll.IntervalSec {
		errs = append(errs, "poll.max_interval_sec must not be below poll.interval_sec")
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a slack token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a discord token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
