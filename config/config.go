package config

import (
	"errors"
	"fmt"
	"time"

	"discord-modbot/model"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads the configuration from the environment, an optional .env file
// and an optional modbot.{toml,yaml,json} file. Environment variables win.
func Load() (*model.Config, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("modbot")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/modbot")
	v.AutomaticEnv()

	v.SetDefault("database_path", "data/modlogs.db")
	v.SetDefault("sweep_interval", "15m")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
	v.SetDefault("disable_command_register", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	token := v.GetString("bot_token")
	if token == "" {
		return nil, errors.New("BOT_TOKEN environment variable not set")
	}

	interval, err := time.ParseDuration(v.GetString("sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: must be positive, got %s", interval)
	}

	return &model.Config{
		BotToken:               token,
		DatabasePath:           v.GetString("database_path"),
		SweepInterval:          interval,
		LogLevel:               v.GetString("log_level"),
		LogDevelopment:         v.GetBool("log_development"),
		DisableCommandRegister: v.GetBool("disable_command_register"),
	}, nil
}
