package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultSeed seeds the RNG when INTERCEPT_SEED is unset.
	DefaultSeed uint64 = 0
	// DefaultRoundCap bounds the simulated time of one engagement.
	DefaultRoundCap = 10_000
	// DefaultEngagements is how many chained engagements a campaign fights.
	DefaultEngagements = 3
	// DefaultMaxTrials caps the trials a single simulation request may ask for.
	DefaultMaxTrials = 100_000
	// DefaultStance is the tactical posture used when none is requested.
	DefaultStance = "aggressive"

	// DefaultHTTPAddr is where the HTTP and websocket surface listens.
	DefaultHTTPAddr = ":43180"
	// DefaultGRPCAddr is where the gRPC balance service listens.
	DefaultGRPCAddr = ":43181"

	// DefaultReplayMaxBundles limits retained replay bundles.
	DefaultReplayMaxBundles = 50
	// DefaultReplayMaxAge expires replay bundles older than this.
	DefaultReplayMaxAge = 7 * 24 * time.Hour

	// DefaultSimulateWindow and DefaultSimulateBurst rate limit HTTP simulations.
	DefaultSimulateWindow = time.Second
	DefaultSimulateBurst  = 20

	// DefaultLogLevel controls verbosity.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "intercept.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the sampler and its service surfaces.
type Config struct {
	Seed           uint64
	RoundCap       int
	Engagements    int
	MaxTrials      int
	Workers        int
	Stance         string
	HTTPAddr       string
	GRPCAddr       string
	GRPCSecret     string
	Replay         ReplayConfig
	SimulateWindow time.Duration
	SimulateBurst  int
	Logging        LoggingConfig
}

// ReplayConfig controls replay bundle persistence.
type ReplayConfig struct {
	Dir        string
	MaxBundles int
	MaxAge     time.Duration
}

// Enabled reports whether replay bundles should be written.
func (r ReplayConfig) Enabled() bool { return r.Dir != "" }

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the configuration from environment variables, applying defaults and
// returning every invalid override in a single error.
func Load() (*Config, error) {
	cfg := &Config{
		Seed:           DefaultSeed,
		RoundCap:       DefaultRoundCap,
		Engagements:    DefaultEngagements,
		MaxTrials:      DefaultMaxTrials,
		Workers:        runtime.GOMAXPROCS(0),
		Stance:         strings.ToLower(getString("INTERCEPT_STANCE", DefaultStance)),
		HTTPAddr:       getString("INTERCEPT_HTTP_ADDR", DefaultHTTPAddr),
		GRPCAddr:       getString("INTERCEPT_GRPC_ADDR", DefaultGRPCAddr),
		GRPCSecret:     strings.TrimSpace(os.Getenv("INTERCEPT_GRPC_SHARED_SECRET")),
		SimulateWindow: DefaultSimulateWindow,
		SimulateBurst:  DefaultSimulateBurst,
		Replay: ReplayConfig{
			Dir:        strings.TrimSpace(os.Getenv("INTERCEPT_REPLAY_DIR")),
			MaxBundles: DefaultReplayMaxBundles,
			MaxAge:     DefaultReplayMaxAge,
		},
		Logging: LoggingConfig{
			Level:      getString("INTERCEPT_LOG_LEVEL", DefaultLogLevel),
			Path:       getString("INTERCEPT_LOG_PATH", DefaultLogPath),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("INTERCEPT_SEED")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("INTERCEPT_SEED must be an unsigned integer, got %q", raw))
		} else {
			cfg.Seed = value
		}
	}

	problems = positiveInt(problems, "INTERCEPT_ROUND_CAP", &cfg.RoundCap)
	problems = positiveInt(problems, "INTERCEPT_ENGAGEMENTS", &cfg.Engagements)
	problems = positiveInt(problems, "INTERCEPT_MAX_TRIALS", &cfg.MaxTrials)
	problems = positiveInt(problems, "INTERCEPT_WORKERS", &cfg.Workers)
	problems = positiveInt(problems, "INTERCEPT_SIMULATE_BURST", &cfg.SimulateBurst)
	problems = positiveDuration(problems, "INTERCEPT_SIMULATE_WINDOW", &cfg.SimulateWindow)

	switch cfg.Stance {
	case "defensive", "balanced", "aggressive":
	default:
		problems = append(problems, fmt.Sprintf("INTERCEPT_STANCE must be defensive, balanced or aggressive, got %q", cfg.Stance))
	}

	problems = nonNegativeInt(problems, "INTERCEPT_REPLAY_MAX_BUNDLES", &cfg.Replay.MaxBundles)
	if raw := strings.TrimSpace(os.Getenv("INTERCEPT_REPLAY_MAX_AGE")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("INTERCEPT_REPLAY_MAX_AGE must be a non-negative duration, got %q", raw))
		} else {
			cfg.Replay.MaxAge = duration
		}
	}

	problems = positiveInt(problems, "INTERCEPT_LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB)
	problems = nonNegativeInt(problems, "INTERCEPT_LOG_MAX_BACKUPS", &cfg.Logging.MaxBackups)
	problems = nonNegativeInt(problems, "INTERCEPT_LOG_MAX_AGE_DAYS", &cfg.Logging.MaxAgeDays)

	if raw := strings.TrimSpace(os.Getenv("INTERCEPT_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("INTERCEPT_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func positiveInt(problems []string, key string, target *int) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return problems
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return append(problems, fmt.Sprintf("%s must be a positive integer, got %q", key, raw))
	}
	*target = value
	return problems
}

func nonNegativeInt(problems []string, key string, target *int) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return problems
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return append(problems, fmt.Sprintf("%s must be a non-negative integer, got %q", key, raw))
	}
	*target = value
	return problems
}

func positiveDuration(problems []string, key string, target *time.Duration) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return problems
	}
	duration, err := time.ParseDuration(raw)
	if err != nil || duration <= 0 {
		return append(problems, fmt.Sprintf("%s must be a positive duration, got %q", key, raw))
	}
	*target = duration
	return problems
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
