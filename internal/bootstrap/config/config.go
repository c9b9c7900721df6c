package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smartreply/internal/bootstrap/logging"
	"smartreply/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Staging  StagingConfig  `mapstructure:"staging"`
	Prompt   PromptConfig   `mapstructure:"prompt"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Platform PlatformConfig `mapstructure:"platform"`
	Publish  PublishConfig  `mapstructure:"publish"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StagingConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

func (c StagingConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type PromptConfig struct {
	TemplateFile string `mapstructure:"template_file"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type PlatformConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TokenURL       string `mapstructure:"token_url"`
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	RefreshToken   string `mapstructure:"refresh_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxReplyBytes  int    `mapstructure:"max_reply_bytes"`
}

func (c PlatformConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type PublishConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	DryRun           bool `mapstructure:"dry_run"`
	AllowClientReply bool `mapstructure:"allow_client_reply"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.Staging.TTLSeconds <= 0 {
		return Config{}, errors.New("staging.ttl_seconds must be positive")
	}
	if cfg.Platform.MaxReplyBytes <= 0 {
		return Config{}, errors.New("platform.max_reply_bytes must be positive")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("publish_enabled", cfg.Publish.Enabled),
		slog.Bool("publish_dry_run", cfg.Publish.DryRun),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "smartreply")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".data/smartreply.sqlite")
	// 3 days, matching the upstream review-ticket retention window.
	v.SetDefault("staging.ttl_seconds", 259200)
	v.SetDefault("prompt.template_file", "configs/prompt.yaml")
	v.SetDefault("openai.model", "gpt-4.1-mini")
	v.SetDefault("openai.timeout_seconds", 25)
	v.SetDefault("platform.base_url", "https://mybusiness.googleapis.com/v4")
	v.SetDefault("platform.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("platform.timeout_seconds", 8)
	v.SetDefault("platform.max_reply_bytes", 4096)
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.dry_run", false)
	v.SetDefault("publish.allow_client_reply", false)
}
