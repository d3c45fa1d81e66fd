// Package balance resolves simulation requests against the catalog and runs them,
// optionally recording a replay bundle. Both network surfaces delegate here.
package balance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"driftpursuit/intercept/internal/campaign"
	"driftpursuit/intercept/internal/combat"
	"driftpursuit/intercept/internal/logging"
	"driftpursuit/intercept/internal/replay"
)

const (
	// MaxTrials bounds a single sampling request unless Defaults.MaxTrials lowers it.
	MaxTrials = 100_000
	// MaxEngagements bounds the chained engagements of one campaign.
	MaxEngagements = 1_000
	// MaxRoundCap bounds the simulated time of one engagement.
	MaxRoundCap = 1_000_000
)

// ErrInvalidRequest reports a request that cannot be turned into a scenario.
var ErrInvalidRequest = errors.New("invalid simulation request")

// UnitSpec selects a craft either from the catalog or inline.
type UnitSpec struct {
	Hull   string       `json:"hull,omitempty"`
	Weapon string       `json:"weapon,omitempty"`
	Kills  int          `json:"kills,omitempty"`
	Custom *combat.Unit `json:"custom,omitempty"`
}

// Build resolves the selection into a validated unit.
func (u UnitSpec) Build() (combat.Unit, error) {
	if u.Custom != nil {
		if u.Hull != "" || u.Weapon != "" {
			return combat.Unit{}, fmt.Errorf("custom unit cannot also name a hull or weapon")
		}
		if err := u.Custom.Validate(); err != nil {
			return combat.Unit{}, err
		}
		return *u.Custom, nil
	}
	if u.Hull == "" || u.Weapon == "" {
		return combat.Unit{}, fmt.Errorf("hull and weapon are required")
	}
	return combat.BuildUnit(strings.ToLower(u.Hull), strings.ToLower(u.Weapon), u.Kills)
}

// Request describes one simulation. Zero-valued fields fall back to the service defaults.
type Request struct {
	Name        string   `json:"name,omitempty"`
	Attacker    UnitSpec `json:"attacker"`
	Defender    UnitSpec `json:"defender"`
	Stance      string   `json:"stance,omitempty"`
	Engagements int      `json:"engagements,omitempty"`
	RoundCap    int      `json:"roundCap,omitempty"`
	Seed        *uint64  `json:"seed,omitempty"`
	Trials      int      `json:"trials,omitempty"`
	Record      bool     `json:"record,omitempty"`
}

// Defaults are the server-side fallbacks for a Request.
type Defaults struct {
	Seed        uint64
	Stance      combat.Stance
	Engagements int
	RoundCap    int
	Workers     int
	MaxTrials   int
}

// Response carries either a single campaign or a trial summary.
type Response struct {
	Result    *campaign.Result  `json:"result,omitempty"`
	Summary   *campaign.Summary `json:"summary,omitempty"`
	BundleDir string            `json:"bundleDir,omitempty"`
}

// Service runs simulations on behalf of the transport layers.
type Service struct {
	defaults  Defaults
	replayDir string
	logger    *logging.Logger
	now       func() time.Time
}

// Option customises the service.
type Option func(*Service)

// WithReplayDir enables bundle recording for requests that ask for it.
func WithReplayDir(dir string) Option {
	return func(s *Service) { s.replayDir = strings.TrimSpace(dir) }
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to name replay bundles.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewService constructs a service with the supplied defaults.
func NewService(defaults Defaults, opts ...Option) *Service {
	if defaults.Engagements <= 0 {
		defaults.Engagements = campaign.DefaultEngagements
	}
	if defaults.RoundCap <= 0 {
		defaults.RoundCap = combat.DefaultRoundCap
	}
	if defaults.MaxTrials <= 0 || defaults.MaxTrials > MaxTrials {
		defaults.MaxTrials = MaxTrials
	}
	service := &Service{defaults: defaults, logger: logging.L(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// Catalog exposes the balance catalog served to clients.
func (s *Service) Catalog() combat.BalanceCatalog {
	return combat.Catalog()
}

// Scenario resolves a request into a validated scenario.
func (s *Service) Scenario(req Request) (campaign.Scenario, error) {
	attacker, err := req.Attacker.Build()
	if err != nil {
		return campaign.Scenario{}, fmt.Errorf("%w: attacker: %w", ErrInvalidRequest, err)
	}
	defender, err := req.Defender.Build()
	if err != nil {
		return campaign.Scenario{}, fmt.Errorf("%w: defender: %w", ErrInvalidRequest, err)
	}
	stance := s.defaults.Stance
	if strings.TrimSpace(req.Stance) != "" {
		if stance, err = combat.ParseStance(req.Stance); err != nil {
			return campaign.Scenario{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	scenario := campaign.Scenario{
		Name:        req.Name,
		Attacker:    attacker,
		Defender:    defender,
		Stance:      stance,
		Engagements: firstPositive(req.Engagements, s.defaults.Engagements),
		RoundCap:    firstPositive(req.RoundCap, s.defaults.RoundCap),
		Seed:        s.defaults.Seed,
	}
	if req.Seed != nil {
		scenario.Seed = *req.Seed
	}
	if req.Engagements < 0 || req.RoundCap < 0 {
		return campaign.Scenario{}, fmt.Errorf("%w: engagements and roundCap must not be negative", ErrInvalidRequest)
	}
	if scenario.Engagements > MaxEngagements {
		return campaign.Scenario{}, fmt.Errorf("%w: engagements must be at most %d, got %d", ErrInvalidRequest, MaxEngagements, scenario.Engagements)
	}
	if scenario.RoundCap > MaxRoundCap {
		return campaign.Scenario{}, fmt.Errorf("%w: roundCap must be at most %d, got %d", ErrInvalidRequest, MaxRoundCap, scenario.RoundCap)
	}
	if err := scenario.Validate(); err != nil {
		return campaign.Scenario{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return scenario, nil
}

// Simulate runs a single campaign or, when trials are requested, a trial batch.
func (s *Service) Simulate(ctx context.Context, req Request) (Response, error) {
	scenario, err := s.Scenario(req)
	if err != nil {
		return Response{}, err
	}
	if req.Trials < 0 || req.Trials > s.defaults.MaxTrials {
		return Response{}, fmt.Errorf("%w: trials must be within 0-%d, got %d", ErrInvalidRequest, s.defaults.MaxTrials, req.Trials)
	}
	if req.Trials > 0 {
		summary, err := campaign.RunTrials(s.contextWithLogger(ctx), scenario, req.Trials, s.defaults.Workers)
		if err != nil {
			return Response{}, err
		}
		return Response{Summary: &summary}, nil
	}
	if !req.Record || s.replayDir == "" {
		result, err := s.run(ctx, scenario, nil)
		if err != nil {
			return Response{}, err
		}
		return Response{Result: &result}, nil
	}

	//1.- Recorded runs stream into a bundle whose header is completed once the ID is known.
	writer, _, err := replay.NewWriter(s.replayDir, scenario.Name, s.now)
	if err != nil {
		return Response{}, fmt.Errorf("open replay bundle: %w", err)
	}
	defer writer.Close()
	result, err := s.run(ctx, scenario, writer)
	if err != nil {
		//2.- A failed run leaves no header worth listing, so drop the partial bundle.
		writer.Close()
		if rmErr := os.RemoveAll(writer.Directory()); rmErr != nil {
			s.logger.Warn("replay bundle cleanup failed", logging.Error(rmErr), logging.String("bundle", writer.Directory()))
		}
		return Response{}, err
	}
	writer.SetHeader(replay.Header{
		CampaignID:  result.ID,
		Scenario:    scenario.Name,
		Seed:        scenario.Seed,
		Stance:      scenario.Stance,
		Engagements: scenario.Engagements,
		Parameters:  result.Parameters,
	})
	if err := writer.Close(); err != nil {
		return Response{}, fmt.Errorf("close replay bundle: %w", err)
	}
	return Response{Result: &result, BundleDir: writer.Directory()}, nil
}

// Stream runs a single campaign and forwards every engagement boundary and shot to the
// recorder as it happens.
func (s *Service) Stream(ctx context.Context, req Request, recorder campaign.Recorder) (campaign.Result, error) {
	scenario, err := s.Scenario(req)
	if err != nil {
		return campaign.Result{}, err
	}
	return s.run(ctx, scenario, recorder)
}

func (s *Service) run(ctx context.Context, scenario campaign.Scenario, recorder campaign.Recorder) (campaign.Result, error) {
	return campaign.Run(s.contextWithLogger(ctx), scenario, campaign.WithRecorder(recorder))
}

func (s *Service) contextWithLogger(ctx context.Context) context.Context {
	if logging.LoggerFromContext(ctx) != logging.L() {
		return ctx
	}
	return logging.ContextWithLogger(ctx, s.logger)
}

func firstPositive(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
