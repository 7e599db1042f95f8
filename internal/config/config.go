// Package config loads runtime settings for the relay from an optional YAML
// file and environment variables, and applies defaults to anything missing
// or invalid.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// UploadConfig controls where uploaded assets are stored.
type UploadConfig struct {
	Dir string `mapstructure:"dir"`
	// MaxSize caps an upload body in bytes. Zero means unbounded.
	MaxSize int64 `mapstructure:"max_size"`
}

// RedisConfig enables the cross-process backplane when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Config holds the server configuration settings.
type Config struct {
	Port           string        `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBufferSize int           `mapstructure:"send_buffer_size"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	Upload         UploadConfig  `mapstructure:"upload"`
	Redis          RedisConfig   `mapstructure:"redis"`
}

const (
	defaultPort           = ":5000"
	defaultMaxMessageSize = 64 * 1024
	defaultSendBufferSize = 256
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultUploadDir      = "uploads"
	defaultRedisChannel   = "relaychat:frames"
)

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"port":             "SERVER_PORT",
	"allowed_origins":  "ALLOWED_ORIGINS",
	"max_message_size": "MAX_MESSAGE_SIZE",
	"send_buffer_size": "SEND_BUFFER_SIZE",
	"write_wait":       "WRITE_WAIT",
	"pong_wait":        "PONG_WAIT",
	"upload.dir":       "UPLOAD_DIR",
	"upload.max_size":  "MAX_UPLOAD_SIZE",
	"redis.addr":       "REDIS_ADDR",
	"redis.password":   "REDIS_PASSWORD",
	"redis.db":         "REDIS_DB",
	"redis.channel":    "REDIS_CHANNEL",
}

// Default returns a Config populated with default values for all settings.
func Default() *Config {
	return &Config{
		Port:           defaultPort,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBufferSize,
		WriteWait:      defaultWriteWait,
		PongWait:       defaultPongWait,
		Upload: UploadConfig{
			Dir: defaultUploadDir,
		},
		Redis: RedisConfig{
			Channel: defaultRedisChannel,
		},
	}
}

// Load reads config.yaml from configDir (if present) and overlays
// environment variables. An empty configDir skips the file lookup.
func Load(configDir string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("port", def.Port)
	v.SetDefault("allowed_origins", def.AllowedOrigins)
	v.SetDefault("max_message_size", def.MaxMessageSize)
	v.SetDefault("send_buffer_size", def.SendBufferSize)
	v.SetDefault("write_wait", def.WriteWait)
	v.SetDefault("pong_wait", def.PongWait)
	v.SetDefault("upload.dir", def.Upload.Dir)
	v.SetDefault("upload.max_size", def.Upload.MaxSize)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", def.Redis.Channel)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configDir != "" {
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	sanitized := Sanitize(cfg)
	return &sanitized, nil
}

// Sanitize replaces missing or invalid values with defaults.
func Sanitize(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}

	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}

	if strings.TrimSpace(cfg.Upload.Dir) == "" {
		cfg.Upload.Dir = defaultUploadDir
	}

	if cfg.Upload.MaxSize < 0 {
		cfg.Upload.MaxSize = 0
	}

	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = defaultRedisChannel
	}

	cfg.AllowedOrigins = parseOrigins(cfg.AllowedOrigins)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg
}

// parseOrigins trims entries and splits any that still hold a comma list,
// which is how a single ALLOWED_ORIGINS value arrives.
func parseOrigins(origins []string) []string {
	var parsed []string
	for _, entry := range origins {
		for _, part := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parsed = append(parsed, trimmed)
			}
		}
	}
	return parsed
}
