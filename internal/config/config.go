package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	StaticDir          string // Directory with the built web client (served at /)

	// Database
	DBDir string // Directory holding the SQLite database file

	// Pollinations (text + image generation)
	PollinationsKey  string
	PollinationsBase string

	// TTS
	TTSVoice string // edge-tts voice for episode narration

	// Export
	MaxConcurrentExports int // Bounds simultaneous video exports
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:              getEnv("API_PORT", "8080"),
		BackendAPIKey:        getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		StaticDir:            getEnv("STATIC_DIR", "static"),
		DBDir:                getEnv("STORYTALE_DB_DIR", "data"),
		PollinationsKey:      strings.TrimSpace(getEnv("POLLINATIONS_API_KEY", "")),
		PollinationsBase:     strings.TrimSpace(getEnv("POLLINATIONS_BASE", "https://gen.pollinations.ai")),
		TTSVoice:             getEnv("EDGE_TTS_VOICE", "th-TH-PremwadeeNeural"),
		MaxConcurrentExports: getEnvInt("MAX_CONCURRENT_EXPORTS", 2),
	}

	if cfg.MaxConcurrentExports < 1 {
		cfg.MaxConcurrentExports = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
