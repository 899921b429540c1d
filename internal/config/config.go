package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	SnapshotPath string `mapstructure:"snapshot_path" yaml:"snapshot_path"`

	MaxContentLength    int           `mapstructure:"max_content_length" yaml:"max_content_length"`
	WindowSoftCap       int           `mapstructure:"window_soft_cap" yaml:"window_soft_cap"`
	WindowTrimTo        int           `mapstructure:"window_trim_to" yaml:"window_trim_to"`
	HydrateLimit        int           `mapstructure:"hydrate_limit" yaml:"hydrate_limit"`
	HistoryDefaultLimit int           `mapstructure:"history_default_limit" yaml:"history_default_limit"`
	HistoryMaxLimit     int           `mapstructure:"history_max_limit" yaml:"history_max_limit"`
	TypingTimeout       time.Duration `mapstructure:"typing_timeout" yaml:"typing_timeout"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	InboxSize           int           `mapstructure:"inbox_size" yaml:"inbox_size"`

	SessionBuffer      int           `mapstructure:"session_buffer" yaml:"session_buffer"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxFrameBytes      int64         `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	CORSAllowOrigin    string        `mapstructure:"cors_allow_origin" yaml:"cors_allow_origin"`

	AuthRequired bool   `mapstructure:"auth_required" yaml:"auth_required"`
	JWTSecret    string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience  string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		DatabasePath: "wirechat.db",
		SnapshotPath: "snapshots",

		MaxContentLength:    2000,
		WindowSoftCap:       100,
		WindowTrimTo:        50,
		HydrateLimit:        50,
		HistoryDefaultLimit: 50,
		HistoryMaxLimit:     200,
		TypingTimeout:       5 * time.Second,
		HeartbeatInterval:   30 * time.Second,
		InboxSize:           64,

		SessionBuffer:      32,
		WriteTimeout:       5 * time.Second,
		MaxFrameBytes:      64 << 10,
		RateLimitPerSecond: 20,
		RateLimitBurst:     40,
		CORSAllowOrigin:    "*",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Used to apply command-line overrides on top of the loaded file.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.SnapshotPath != "" {
		c.SnapshotPath = other.SnapshotPath
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.AuthRequired {
		c.AuthRequired = true
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
}
