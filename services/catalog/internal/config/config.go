package config

import (
	"os"
	"strings"
)

type Config struct {
	NATSURL string
}

func Load() Config {
	url := strings.TrimSpace(os.Getenv("NATS_URL"))
	if url == "" {
		url = "nats://nats:4222"
	}
	return Config{NATSURL: url}
}
