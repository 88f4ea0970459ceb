package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAddr       = ":3000"
	defaultAPIBaseURL = "http://backend:8000"
	defaultSessionTTL = 72 * time.Hour
	defaultAPITimeout = 15 * time.Second
	defaultSweepEvery = 15 * time.Minute
)

// Config holds environment-driven configuration.
type Config struct {
	Addr          string
	APIBaseURL    string
	DatabaseURL   string
	SessionSecret string
	SessionTTL    time.Duration
	SweepInterval time.Duration
	APITimeout    time.Duration
	AllowOrigins  string
	Debug         bool
}

// Load reads an optional .env file and then configuration from environment variables.
func Load() Config {
	_ = godotenv.Load()

	apiURL := os.Getenv("NUTRIBUDDY_API_URL")
	if apiURL == "" {
		apiURL = os.Getenv("REACT_APP_API_URL")
	}

	return Config{
		Addr:          getenv("NUTRIBUDDY_ADDR", defaultAddr),
		APIBaseURL:    strings.TrimRight(orDefault(apiURL, defaultAPIBaseURL), "/"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    duration("SESSION_TTL", defaultSessionTTL),
		SweepInterval: duration("SESSION_SWEEP_INTERVAL", defaultSweepEvery),
		APITimeout:    duration("API_TIMEOUT", defaultAPITimeout),
		AllowOrigins:  getenv("CORS_ALLOW_ORIGINS", "*"),
		Debug:         flag("DEBUG"),
	}
}

func getenv(key, fallback string) string {
	return orDefault(os.Getenv(key), fallback)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func flag(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
