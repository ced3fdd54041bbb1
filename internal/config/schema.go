// Package config defines the configuration schema for botonex.
//
// The file format follows the extension: TOML (the default, config.toml),
// YAML, or JSON. Keys are camelCase in every format.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ServerConfig is the Twitch chat endpoint.
type ServerConfig struct {
	Address      string `json:"address" toml:"address" yaml:"address"`
	PingInterval string `json:"pingInterval" toml:"pingInterval" yaml:"pingInterval"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      "wss://irc-ws.chat.twitch.tv:443",
		PingInterval: "180s",
	}
}

// PingEvery returns the keep-alive interval, falling back to 180s.
func (s ServerConfig) PingEvery() time.Duration {
	return parseDuration(s.PingInterval, 180*time.Second)
}

// UserConfig is the bot account and the channel it joins.
type UserConfig struct {
	Nick    string `json:"nick" toml:"nick" yaml:"nick"`
	Token   string `json:"token" toml:"token" yaml:"token"`
	Channel string `json:"channel" toml:"channel" yaml:"channel"`
}

// ChannelName returns the channel with a leading '#'.
func (u UserConfig) ChannelName() string {
	if u.Channel == "" || strings.HasPrefix(u.Channel, "#") {
		return u.Channel
	}
	return "#" + u.Channel
}

// BusConfig sizes the message bus.
type BusConfig struct {
	Capacity int `json:"capacity" toml:"capacity" yaml:"capacity"`
}

// ClockConfig configures the periodic timestamp publisher.
type ClockConfig struct {
	Enabled  bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Interval string `json:"interval" toml:"interval" yaml:"interval"`
}

// Every returns the publish interval, falling back to one minute.
func (c ClockConfig) Every() time.Duration {
	return parseDuration(c.Interval, time.Minute)
}

// TTSConfig configures speech synthesis of chat messages.
type TTSConfig struct {
	Enabled   bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	APIBase   string `json:"apiBase" toml:"apiBase" yaml:"apiBase"`
	APIKey    string `json:"apiKey" toml:"apiKey" yaml:"apiKey"`
	Model     string `json:"model" toml:"model" yaml:"model"`
	Voice     string `json:"voice" toml:"voice" yaml:"voice"`
	OutputDir string `json:"outputDir,omitempty" toml:"outputDir,omitempty" yaml:"outputDir,omitempty"`
}

func defaultTTSConfig() TTSConfig {
	return TTSConfig{
		APIBase: "https://api.openai.com/v1",
		Model:   "tts-1",
		Voice:   "alloy",
	}
}

// OverlayConfig configures the browser overlay server.
type OverlayConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" toml:"addr" yaml:"addr"`
	History int    `json:"history" toml:"history" yaml:"history"`
}

// CommandsConfig configures the chat command processor.
type CommandsConfig struct {
	Enabled bool `json:"enabled" toml:"enabled" yaml:"enabled"`
	// Static maps an activator such as "!discord" to a fixed reply.
	Static map[string]string `json:"static,omitempty" toml:"static,omitempty" yaml:"static,omitempty"`
}

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `json:"server" toml:"server" yaml:"server"`
	User     UserConfig     `json:"user" toml:"user" yaml:"user"`
	Bus      BusConfig      `json:"bus" toml:"bus" yaml:"bus"`
	Clock    ClockConfig    `json:"clock" toml:"clock" yaml:"clock"`
	TTS      TTSConfig      `json:"tts" toml:"tts" yaml:"tts"`
	Overlay  OverlayConfig  `json:"overlay" toml:"overlay" yaml:"overlay"`
	Commands CommandsConfig `json:"commands" toml:"commands" yaml:"commands"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() Config {
	return Config{
		Server:   defaultServerConfig(),
		User:     UserConfig{Nick: "botonex"},
		Bus:      BusConfig{Capacity: 1024},
		Clock:    ClockConfig{Enabled: true, Interval: "1m"},
		TTS:      defaultTTSConfig(),
		Overlay:  OverlayConfig{Addr: "127.0.0.1:18791", History: 50},
		Commands: CommandsConfig{Enabled: true},
	}
}

// OutputPath expands a leading ~ in the TTS output directory.
func (t TTSConfig) OutputPath() string {
	return expandHome(t.OutputDir)
}

func expandHome(p string) string {
	if p == "" || !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
