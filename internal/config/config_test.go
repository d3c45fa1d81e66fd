package config

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"INTERCEPT_SEED",
	"INTERCEPT_ROUND_CAP",
	"INTERCEPT_ENGAGEMENTS",
	"INTERCEPT_MAX_TRIALS",
	"INTERCEPT_WORKERS",
	"INTERCEPT_STANCE",
	"INTERCEPT_HTTP_ADDR",
	"INTERCEPT_GRPC_ADDR",
	"INTERCEPT_GRPC_SHARED_SECRET",
	"INTERCEPT_REPLAY_DIR",
	"INTERCEPT_REPLAY_MAX_BUNDLES",
	"INTERCEPT_REPLAY_MAX_AGE",
	"INTERCEPT_SIMULATE_WINDOW",
	"INTERCEPT_SIMULATE_BURST",
	"INTERCEPT_LOG_LEVEL",
	"INTERCEPT_LOG_PATH",
	"INTERCEPT_LOG_MAX_SIZE_MB",
	"INTERCEPT_LOG_MAX_BACKUPS",
	"INTERCEPT_LOG_MAX_AGE_DAYS",
	"INTERCEPT_LOG_COMPRESS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Seed != DefaultSeed {
		t.Fatalf("expected default seed %d, got %d", DefaultSeed, cfg.Seed)
	}
	if cfg.RoundCap != DefaultRoundCap {
		t.Fatalf("expected default round cap %d, got %d", DefaultRoundCap, cfg.RoundCap)
	}
	if cfg.Engagements != DefaultEngagements {
		t.Fatalf("expected default engagements %d, got %d", DefaultEngagements, cfg.Engagements)
	}
	if cfg.Workers != runtime.GOMAXPROCS(0) {
		t.Fatalf("expected workers to default to GOMAXPROCS, got %d", cfg.Workers)
	}
	if cfg.Stance != DefaultStance {
		t.Fatalf("expected default stance %q, got %q", DefaultStance, cfg.Stance)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr || cfg.GRPCAddr != DefaultGRPCAddr {
		t.Fatalf("unexpected addresses http=%q grpc=%q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.Replay.Enabled() {
		t.Fatalf("replay should be disabled without a directory")
	}
	if cfg.Logging.Path != DefaultLogPath || !cfg.Logging.Compress {
		t.Fatalf("unexpected logging defaults: %#v", cfg.Logging)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("INTERCEPT_SEED", "42")
	t.Setenv("INTERCEPT_ROUND_CAP", "5000")
	t.Setenv("INTERCEPT_ENGAGEMENTS", "5")
	t.Setenv("INTERCEPT_MAX_TRIALS", "200")
	t.Setenv("INTERCEPT_WORKERS", "3")
	t.Setenv("INTERCEPT_STANCE", "Defensive")
	t.Setenv("INTERCEPT_REPLAY_DIR", "/tmp/replays")
	t.Setenv("INTERCEPT_REPLAY_MAX_AGE", "2h")
	t.Setenv("INTERCEPT_SIMULATE_WINDOW", "5s")
	t.Setenv("INTERCEPT_LOG_COMPRESS", "false")
	t.Setenv("INTERCEPT_GRPC_SHARED_SECRET", " hunter2 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Seed != 42 || cfg.RoundCap != 5000 || cfg.Engagements != 5 {
		t.Fatalf("unexpected numeric overrides: %#v", cfg)
	}
	if cfg.MaxTrials != 200 || cfg.Workers != 3 {
		t.Fatalf("unexpected trial overrides max trials=%d workers=%d", cfg.MaxTrials, cfg.Workers)
	}
	if cfg.Stance != "defensive" {
		t.Fatalf("expected stance to be normalised, got %q", cfg.Stance)
	}
	if !cfg.Replay.Enabled() || cfg.Replay.MaxAge != 2*time.Hour {
		t.Fatalf("unexpected replay config: %#v", cfg.Replay)
	}
	if cfg.SimulateWindow != 5*time.Second {
		t.Fatalf("expected simulate window 5s, got %v", cfg.SimulateWindow)
	}
	if cfg.Logging.Compress {
		t.Fatalf("expected log compression to be disabled")
	}
	if cfg.GRPCSecret != "hunter2" {
		t.Fatalf("expected trimmed shared secret, got %q", cfg.GRPCSecret)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("INTERCEPT_SEED", "-1")
	t.Setenv("INTERCEPT_ROUND_CAP", "0")
	t.Setenv("INTERCEPT_STANCE", "reckless")
	t.Setenv("INTERCEPT_LOG_COMPRESS", "maybe")

	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected an error, got config %#v", cfg)
	}
	//1.- Every problem should be reported at once so operators can fix them together.
	for _, key := range []string{"INTERCEPT_SEED", "INTERCEPT_ROUND_CAP", "INTERCEPT_STANCE", "INTERCEPT_LOG_COMPRESS"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected error to mention %s, got %v", key, err)
		}
	}
}
