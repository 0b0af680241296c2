package app

import (
	"slices"
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("RELAY_TEST_STR", "  value  ")
	if got := EnvString("RELAY_TEST_STR", "def"); got != "value" {
		t.Fatalf("got=%q", got)
	}
	if got := EnvString("RELAY_TEST_STR_UNSET", "def"); got != "def" {
		t.Fatalf("default: got=%q", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("RELAY_TEST_BOOL", "true")
	if !EnvBool("RELAY_TEST_BOOL", false) {
		t.Fatalf("true not parsed")
	}
	t.Setenv("RELAY_TEST_BOOL", "not-a-bool")
	if !EnvBool("RELAY_TEST_BOOL", true) {
		t.Fatalf("invalid value must fall back to default")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("RELAY_TEST_INT", "42")
	if got := EnvInt("RELAY_TEST_INT", 7); got != 42 {
		t.Fatalf("got=%d", got)
	}
	t.Setenv("RELAY_TEST_INT", "-1")
	if got := EnvInt("RELAY_TEST_INT", 7); got != 7 {
		t.Fatalf("non-positive must fall back: got=%d", got)
	}
	t.Setenv("RELAY_TEST_INT", "nope")
	if got := EnvInt("RELAY_TEST_INT", 7); got != 7 {
		t.Fatalf("invalid must fall back: got=%d", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("RELAY_TEST_DUR", "90s")
	if got := EnvDuration("RELAY_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("got=%v", got)
	}
	t.Setenv("RELAY_TEST_DUR", "-5s")
	if got := EnvDuration("RELAY_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("non-positive must fall back: got=%v", got)
	}
}

func TestEnvCSV(t *testing.T) {
	t.Setenv("RELAY_TEST_CSV", " a , b ,, c ")
	got := EnvCSV("RELAY_TEST_CSV", "x,y")
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("got=%v", got)
	}

	got = EnvCSV("RELAY_TEST_CSV_UNSET", "x,y")
	if !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("default: got=%v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr == "" || cfg.LogLevel == "" {
		t.Fatalf("config=%+v", cfg)
	}
	if cfg.HistoryCapacity != 10 {
		t.Fatalf("HistoryCapacity=%d want=10", cfg.HistoryCapacity)
	}
	if !cfg.WSOriginRequired {
		t.Fatalf("origin check must default to required")
	}
	if len(cfg.WSAllowedOrigins) == 0 {
		t.Fatalf("default allowed origins empty")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("RELAY_HISTORY_CAPACITY", "25")
	t.Setenv("RELAY_WS_ALLOWED_ORIGINS", "https://chat.example.com")
	t.Setenv("RELAY_NATS_URL", "nats://broker:4222")

	cfg := LoadConfig()
	if cfg.HistoryCapacity != 25 {
		t.Fatalf("HistoryCapacity=%d want=25", cfg.HistoryCapacity)
	}
	if !slices.Equal(cfg.WSAllowedOrigins, []string{"https://chat.example.com"}) {
		t.Fatalf("WSAllowedOrigins=%v", cfg.WSAllowedOrigins)
	}
	if cfg.NATSURL != "nats://broker:4222" {
		t.Fatalf("NATSURL=%q", cfg.NATSURL)
	}
}
