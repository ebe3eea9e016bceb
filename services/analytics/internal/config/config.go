package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the analytics sink's configuration.
type Config struct {
	LogLevel         string
	NATSURL          string
	PostHogAPIKey    string
	PostHogHost      string
	FlushInterval    time.Duration
	PostHogBatchSize int
	FetchBatchSize   int
	FetchMaxWait     time.Duration
}

func Load() (Config, error) {
	key := strings.TrimSpace(os.Getenv("POSTHOG_API_KEY"))
	if key == "" {
		return Config{}, errors.New("POSTHOG_API_KEY is required")
	}

	return Config{
		LogLevel:         envDefault("LOG_LEVEL", "info"),
		NATSURL:          strings.TrimSpace(os.Getenv("NATS_URL")),
		PostHogAPIKey:    key,
		PostHogHost:      envDefault("POSTHOG_HOST", "https://app.posthog.com"),
		FlushInterval:    time.Duration(intDefault("POSTHOG_FLUSH_INTERVAL_SEC", 5)) * time.Second,
		PostHogBatchSize: intDefault("POSTHOG_BATCH_SIZE", 100),
		FetchBatchSize:   intDefault("WORKER_BATCH_SIZE", 200),
		FetchMaxWait:     time.Duration(intDefault("WORKER_BATCH_INTERVAL_MS", 2000)) * time.Millisecond,
	}, nil
}

func envDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
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
