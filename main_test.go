package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"driftpursuit/intercept/internal/config"
	"driftpursuit/intercept/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Seed:           1,
		RoundCap:       config.DefaultRoundCap,
		Engagements:    config.DefaultEngagements,
		MaxTrials:      10,
		Workers:        2,
		Stance:         "aggressive",
		HTTPAddr:       "127.0.0.1:0",
		GRPCAddr:       "127.0.0.1:0",
		SimulateWindow: time.Second,
		SimulateBurst:  10,
		Replay:         config.ReplayConfig{Dir: t.TempDir(), MaxBundles: 5, MaxAge: time.Hour},
	}
}

func TestBuildServersWiresHTTPSurface(t *testing.T) {
	built, err := buildServers(testConfig(t), logging.NewTestLogger())
	if err != nil {
		t.Fatalf("buildServers: %v", err)
	}
	defer built.grpc.Stop()
	if built.cleaner == nil {
		t.Fatalf("expected a replay cleaner when a replay directory is configured")
	}
	server := httptest.NewServer(built.http)
	defer server.Close()

	body := `{"attacker":{"hull":"interceptor","weapon":"avalanche"},"defender":{"hull":"scout","weapon":"single-plasma"},"record":true}`
	resp, err := http.Post(server.URL+"/simulate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /simulate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Trace-ID") == "" {
		t.Fatalf("expected trace middleware to stamp a trace id")
	}
	var payload struct {
		BundleDir string `json:"bundleDir"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.BundleDir == "" {
		t.Fatalf("expected the run to be recorded")
	}

	built.cleaner.RunOnce()
	if stats := built.cleaner.Stats(); stats.Bundles != 1 {
		t.Fatalf("expected one retained bundle, got %+v", stats)
	}
}

func TestBuildServersRejectsUnknownStance(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stance = "berserk"
	if _, err := buildServers(cfg, logging.NewTestLogger()); err == nil {
		t.Fatalf("expected unknown stance to fail")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(t), logging.NewTestLogger()) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after cancellation")
	}
}

func TestRunReportsBusyAddress(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer busy.Close()
	cfg := testConfig(t)
	cfg.HTTPAddr = busy.Addr().String()
	if err := run(context.Background(), cfg, logging.NewTestLogger()); err == nil || !strings.Contains(err.Error(), "listen http") {
		t.Fatalf("expected listen failure, got %v", err)
	}
}
