package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	JWTSecret      string
	PlaybackSecret string

	AuthURL     string
	CatalogURL  string
	ProgressURL string
	PlayBaseURL string

	NATSURL string

	CacheTTL   time.Duration
	SessionTTL time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
}

func Load() (Config, error) {
	cfg := Config{
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		PlaybackSecret:     strings.TrimSpace(os.Getenv("PLAYBACK_SIGNING_SECRET")),
		AuthURL:            envDefault("AUTH_SERVICE_URL", "http://auth:8080"),
		CatalogURL:         envDefault("CATALOG_SERVICE_URL", "http://catalog:8080"),
		ProgressURL:        envDefault("PROGRESS_SERVICE_URL", "http://progress:8080"),
		PlayBaseURL:        strings.TrimSpace(os.Getenv("PLAY_BASE_URL")),
		NATSURL:            strings.TrimSpace(os.Getenv("NATS_URL")),
		CacheTTL:           durationDefault("GATEWAY_CACHE_TTL", time.Minute),
		SessionTTL:         durationDefault("GATEWAY_SESSION_TTL", 30*time.Minute),
		RateLimitPerSecond: floatDefault("GATEWAY_RATE_LIMIT_RPS", 20),
		RateLimitBurst:     intDefault("GATEWAY_RATE_LIMIT_BURST", 40),
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.PlaybackSecret == "" {
		return Config{}, errors.New("PLAYBACK_SIGNING_SECRET is required")
	}
	if cfg.PlayBaseURL == "" {
		return Config{}, errors.New("PLAY_BASE_URL is required")
	}
	return cfg, nil
}

func envDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func floatDefault(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func intDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
