package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration
type Config struct {
	Server Server `mapstructure:"server"`
	Sync   Sync   `mapstructure:"sync"`
	Store  Store  `mapstructure:"store"`
	Notify Notify `mapstructure:"notify"`
}

// Server holds the addresses of the external collaborators
type Server struct {
	RESTBaseURL  string        `mapstructure:"rest_base_url"`
	GatewayURL   string        `mapstructure:"gateway_url"`
	PlatformId   int           `mapstructure:"platform_id"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	MaxMsgSize   int64         `mapstructure:"max_message_size"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
}

// Sync holds the synchronization core tuning knobs. The dedup and fallback
// windows are empirically tuned to cover inter-path network jitter; nothing
// depends on the exact values beyond that.
type Sync struct {
	DedupWindow          time.Duration `mapstructure:"dedup_window"`
	FallbackDelay        time.Duration `mapstructure:"fallback_delay"`
	ProvisionalRetention time.Duration `mapstructure:"provisional_retention"`
}

// Store holds the local snapshot cache configuration
type Store struct {
	Path string `mapstructure:"path"`
}

// Notify holds notification intent configuration
type Notify struct {
	SoundEnabled bool `mapstructure:"sound_enabled"`
}

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a config with all defaults applied and no file read
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.RESTBaseURL == "" {
		cfg.Server.RESTBaseURL = "http://localhost:8080"
	}
	if cfg.Server.GatewayURL == "" {
		cfg.Server.GatewayURL = "ws://localhost:8081/ws"
	}
	if cfg.Server.DialTimeout == 0 {
		cfg.Server.DialTimeout = 10 * time.Second
	}
	if cfg.Server.PongWait == 0 {
		cfg.Server.PongWait = 30 * time.Second
	}
	if cfg.Server.PingPeriod == 0 {
		cfg.Server.PingPeriod = (cfg.Server.PongWait * 9) / 10
	}
	if cfg.Server.WriteWait == 0 {
		cfg.Server.WriteWait = 10 * time.Second
	}
	if cfg.Server.MaxMsgSize == 0 {
		cfg.Server.MaxMsgSize = 51200
	}
	if cfg.Server.ReconnectMin == 0 {
		cfg.Server.ReconnectMin = time.Second
	}
	if cfg.Server.ReconnectMax == 0 {
		cfg.Server.ReconnectMax = 30 * time.Second
	}
	if cfg.Sync.DedupWindow == 0 {
		cfg.Sync.DedupWindow = time.Second
	}
	if cfg.Sync.FallbackDelay == 0 {
		cfg.Sync.FallbackDelay = 300 * time.Millisecond
	}
	if cfg.Sync.ProvisionalRetention == 0 {
		cfg.Sync.ProvisionalRetention = 5 * time.Minute
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "chatsync.db"
	}
}
