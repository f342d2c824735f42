package config

import "time"

// Config holds bridge server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// UniverseID is the Roblox universe the bridge serves. One universe
	// and one key pair per running instance.
	UniverseID int64 `mapstructure:"universe_id" yaml:"universe_id"`
	// OpenCloudKey authenticates against the Open Cloud APIs.
	OpenCloudKey string `mapstructure:"open_cloud_key" yaml:"open_cloud_key"`
	// ServerKey is the shared key game servers present on /connect.
	// Generated at startup when empty.
	ServerKey string `mapstructure:"server_key" yaml:"server_key"`

	PushTimeout    time.Duration `mapstructure:"push_timeout" yaml:"push_timeout"`
	ProfileTimeout time.Duration `mapstructure:"profile_timeout" yaml:"profile_timeout"`
	PlayerCacheTTL time.Duration `mapstructure:"player_cache_ttl" yaml:"player_cache_ttl"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		PushTimeout:       10 * time.Second,
		ProfileTimeout:    10 * time.Second,
		PlayerCacheTTL:    time.Hour,
		SessionTTL:        24 * time.Hour,
	}
}
