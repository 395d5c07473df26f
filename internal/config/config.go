// Package config loads chartsync settings from the environment, an optional
// .env file and an optional chartsync.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds client and server settings. The client commands ignore the
// server block and the other way round.
type Config struct {
	ServerURL    string        `mapstructure:"CHARTSYNC_SERVER_URL" validate:"required,url"`
	Token        string        `mapstructure:"CHARTSYNC_TOKEN"`
	DBPath       string        `mapstructure:"CHARTSYNC_DB_PATH" validate:"required"`
	PrefsPath    string        `mapstructure:"CHARTSYNC_PREFS_PATH" validate:"required"`
	Debounce     time.Duration `mapstructure:"CHARTSYNC_DEBOUNCE" validate:"gt=0"`
	SyncedWindow time.Duration `mapstructure:"CHARTSYNC_SYNCED_WINDOW" validate:"gt=0"`
	ErrorWindow  time.Duration `mapstructure:"CHARTSYNC_ERROR_WINDOW" validate:"gt=0"`
	PollInterval time.Duration `mapstructure:"CHARTSYNC_POLL_INTERVAL" validate:"gt=0"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	ServerAddr     string  `mapstructure:"SERVER_ADDR" validate:"required,hostname_port"`
	ServerDBPath   string  `mapstructure:"SERVER_DB_PATH" validate:"required"`
	JWTSecret      string  `mapstructure:"JWT_SECRET" validate:"omitempty,min=16"`
	VersionLimit   int     `mapstructure:"VERSION_LIMIT" validate:"gte=1,lte=1000"`
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST" validate:"gte=0"`
	CORSOrigins    string  `mapstructure:"CORS_ALLOW_ORIGINS"`
}

// AllowOrigins splits CORSOrigins on commas. Empty means any origin.
func (c *Config) AllowOrigins() []string {
	out := []string{}
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Keys lists every recognised setting.
func Keys() []string {
	return []string{
		"CHARTSYNC_SERVER_URL",
		"CHARTSYNC_TOKEN",
		"CHARTSYNC_DB_PATH",
		"CHARTSYNC_PREFS_PATH",
		"CHARTSYNC_DEBOUNCE",
		"CHARTSYNC_SYNCED_WINDOW",
		"CHARTSYNC_ERROR_WINDOW",
		"CHARTSYNC_POLL_INTERVAL",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"SERVER_ADDR",
		"SERVER_DB_PATH",
		"JWT_SECRET",
		"VERSION_LIMIT",
		"RATE_LIMIT_RPS",
		"RATE_LIMIT_BURST",
		"CORS_ALLOW_ORIGINS",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration with dir as the search path for .env and
// chartsync.yaml. Both files are optional. Precedence, highest first:
// environment, .env, chartsync.yaml, defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("chartsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read chartsync.yaml: %w", err)
		}
	}

	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	if len(env) > 0 {
		layer := make(map[string]any, len(env))
		for k, val := range env {
			layer[k] = val
		}
		if err := v.MergeConfigMap(layer); err != nil {
			return nil, fmt.Errorf("merge .env: %w", err)
		}
	}

	for _, key := range Keys() {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	state := stateDir()
	v.SetDefault("CHARTSYNC_SERVER_URL", "http://localhost:8080/sync/api")
	v.SetDefault("CHARTSYNC_DB_PATH", filepath.Join(state, "local.db"))
	v.SetDefault("CHARTSYNC_PREFS_PATH", filepath.Join(state, "prefs.yaml"))
	v.SetDefault("CHARTSYNC_DEBOUNCE", "2s")
	v.SetDefault("CHARTSYNC_SYNCED_WINDOW", "3s")
	v.SetDefault("CHARTSYNC_ERROR_WINDOW", "5s")
	v.SetDefault("CHARTSYNC_POLL_INTERVAL", "1s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("SERVER_ADDR", "localhost:8080")
	v.SetDefault("SERVER_DB_PATH", "chartsync-server.db")
	v.SetDefault("VERSION_LIMIT", 10)
	v.SetDefault("RATE_LIMIT_RPS", 0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

// stateDir is where the local store and preferences live by default.
func stateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "chartsync")
	}
	return ".chartsync"
}
