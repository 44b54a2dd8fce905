package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// Database
	DatabasePath string

	// Boss reference data
	BossDataURL     string
	RefreshSchedule string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:    os.Getenv("DISCORD_BOT_TOKEN"),
		DatabasePath:    getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		BossDataURL:     os.Getenv("BOSS_DATA_URL"),
		RefreshSchedule: getEnvOrDefault("BOSS_DATA_REFRESH", "@every 6h"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
