package natsconn

import (
	"testing"
	"time"
)

func TestEnvInt(t *testing.T) {
	if v := envInt("NATSCONN_TEST_MISSING", 42); v != 42 {
		t.Fatalf("expected fallback 42, got %d", v)
	}

	t.Setenv("NATSCONN_TEST_INT", "7")
	if v := envInt("NATSCONN_TEST_INT", 42); v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}

	t.Setenv("NATSCONN_TEST_INT", "-1")
	if v := envInt("NATSCONN_TEST_INT", 42); v != 42 {
		t.Fatalf("negative values should fall back, got %d", v)
	}
}

func TestEnvDuration(t *testing.T) {
	if v := envDuration("NATSCONN_TEST_MISSING", 5*time.Second); v != 5*time.Second {
		t.Fatalf("expected fallback 5s, got %s", v)
	}

	t.Setenv("NATSCONN_TEST_DUR", "3s")
	if v := envDuration("NATSCONN_TEST_DUR", 5*time.Second); v != 3*time.Second {
		t.Fatalf("expected 3s, got %s", v)
	}

	t.Setenv("NATSCONN_TEST_DUR", "bogus")
	if v := envDuration("NATSCONN_TEST_DUR", 5*time.Second); v != 5*time.Second {
		t.Fatalf("unparseable values should fall back, got %s", v)
	}
}

func TestConnect_FailsFastOnUnreachableServer(t *testing.T) {
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error connecting to unreachable NATS URL")
	}
}
