package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
	Audit  AuditSettings  `hcl:"audit,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// GameSettings contains the room and engine tuning knobs.
type GameSettings struct {
	// GracePeriodSeconds is how long a room with zero connected humans
	// survives before it is destroyed.
	GracePeriodSeconds int `hcl:"grace_period_seconds,optional"`
	// DedupWindowMS is the enqueue window within which an identical action
	// from the same player is dropped.
	DedupWindowMS int `hcl:"dedup_window_ms,optional"`
	// CooldownMS is the pause after a phase transition before the next
	// queued action is applied.
	CooldownMS int `hcl:"cooldown_ms,optional"`
	// Bot think-time range.
	BotDelayMinMS int `hcl:"bot_delay_min_ms,optional"`
	BotDelayMaxMS int `hcl:"bot_delay_max_ms,optional"`
	// RedealTimeoutSeconds is the decision window for weak-hand redeals.
	RedealTimeoutSeconds int `hcl:"redeal_timeout_seconds,optional"`
}

// AuditSettings controls the per-room durable event trail.
type AuditSettings struct {
	Enabled bool   `hcl:"enabled,optional"`
	Dir     string `hcl:"dir,optional"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
			LogFile:  "",
		},
		Game: GameSettings{
			GracePeriodSeconds:   30,
			DedupWindowMS:        100,
			CooldownMS:           50,
			BotDelayMinMS:        500,
			BotDelayMaxMS:        1500,
			RedealTimeoutSeconds: 30,
		},
		Audit: AuditSettings{
			Enabled: false,
			Dir:     "audit",
		},
	}
}

// LoadConfig loads server configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.GracePeriodSeconds == 0 {
		config.Game.GracePeriodSeconds = defaults.Game.GracePeriodSeconds
	}
	if config.Game.DedupWindowMS == 0 {
		config.Game.DedupWindowMS = defaults.Game.DedupWindowMS
	}
	if config.Game.CooldownMS == 0 {
		config.Game.CooldownMS = defaults.Game.CooldownMS
	}
	if config.Game.BotDelayMinMS == 0 {
		config.Game.BotDelayMinMS = defaults.Game.BotDelayMinMS
	}
	if config.Game.BotDelayMaxMS == 0 {
		config.Game.BotDelayMaxMS = defaults.Game.BotDelayMaxMS
	}
	if config.Game.RedealTimeoutSeconds == 0 {
		config.Game.RedealTimeoutSeconds = defaults.Game.RedealTimeoutSeconds
	}
	if config.Audit.Dir == "" {
		config.Audit.Dir = defaults.Audit.Dir
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.GracePeriodSeconds < 0 || c.Game.GracePeriodSeconds > 3600 {
		return fmt.Errorf("grace period out of range: %ds", c.Game.GracePeriodSeconds)
	}
	if c.Game.DedupWindowMS < 0 {
		return fmt.Errorf("dedup window must not be negative")
	}
	if c.Game.BotDelayMinMS > c.Game.BotDelayMaxMS {
		return fmt.Errorf("bot delay minimum %dms exceeds maximum %dms",
			c.Game.BotDelayMinMS, c.Game.BotDelayMaxMS)
	}
	if c.Game.RedealTimeoutSeconds < 1 {
		return fmt.Errorf("redeal timeout must be at least 1s")
	}
	return nil
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GracePeriod returns the idle-room grace period as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Game.GracePeriodSeconds) * time.Second
}

// DedupWindow returns the enqueue dedup window as a duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Game.DedupWindowMS) * time.Millisecond
}

// Cooldown returns the post-transition cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Game.CooldownMS) * time.Millisecond
}

// RedealTimeout returns the redeal decision window as a duration.
func (c *Config) RedealTimeout() time.Duration {
	return time.Duration(c.Game.RedealTimeoutSeconds) * time.Second
}
