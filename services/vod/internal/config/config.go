package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type Config struct {
	ProviderBaseURL   string
	ProviderLibraryID string
	ProviderAPIKey    string
	StreamHost        string
	PlaybackSecret    string
	RedisURL          string
	NATSURL           string
	StatusCacheTTL    time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		ProviderBaseURL:   strings.TrimSpace(os.Getenv("VOD_PROVIDER_BASE_URL")),
		ProviderLibraryID: strings.TrimSpace(os.Getenv("VOD_LIBRARY_ID")),
		ProviderAPIKey:    strings.TrimSpace(os.Getenv("VOD_API_KEY")),
		StreamHost:        strings.TrimSpace(os.Getenv("VOD_STREAM_HOST")),
		PlaybackSecret:    strings.TrimSpace(os.Getenv("PLAYBACK_SIGNING_SECRET")),
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		NATSURL:           strings.TrimSpace(os.Getenv("NATS_URL")),
		StatusCacheTTL:    parseDurationWithDefault(os.Getenv("VOD_STATUS_CACHE_TTL"), 30*time.Second),
	}
	if cfg.ProviderLibraryID == "" {
		return Config{}, errors.New("VOD_LIBRARY_ID is required")
	}
	if cfg.ProviderAPIKey == "" {
		return Config{}, errors.New("VOD_API_KEY is required")
	}
	if cfg.StreamHost == "" {
		return Config{}, errors.New("VOD_STREAM_HOST is required")
	}
	if cfg.PlaybackSecret == "" {
		return Config{}, errors.New("PLAYBACK_SIGNING_SECRET is required")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://redis:6379/0"
	}
	return cfg, nil
}

func parseDurationWithDefault(v string, def time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
