// Package campaign chains engagements between the same two craft and samples many such
// campaigns to estimate outcome distributions.
package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"driftpursuit/intercept/internal/combat"
	"driftpursuit/intercept/internal/logging"
)

// DefaultEngagements matches the three sorties the balance sheets were built around.
const DefaultEngagements = 3

// recordPrealloc caps the up-front record allocation; campaigns usually end early.
const recordPrealloc = 16

// ErrInvalidScenario reports a scenario that cannot be simulated.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario fixes everything a campaign needs except randomness.
type Scenario struct {
	Name        string        `json:"name,omitempty"`
	Attacker    combat.Unit   `json:"attacker"`
	Defender    combat.Unit   `json:"defender"`
	Stance      combat.Stance `json:"stance"`
	Engagements int           `json:"engagements"`
	RoundCap    int           `json:"roundCap"`
	Seed        uint64        `json:"seed"`
}

// WithDefaults fills zero-valued counters with their defaults.
func (s Scenario) WithDefaults() Scenario {
	if s.Engagements == 0 {
		s.Engagements = DefaultEngagements
	}
	if s.RoundCap == 0 {
		s.RoundCap = combat.DefaultRoundCap
	}
	return s
}

// Validate checks the scenario, including both units.
func (s Scenario) Validate() error {
	if s.Engagements <= 0 {
		return fmt.Errorf("%w: engagements must be positive, got %d", ErrInvalidScenario, s.Engagements)
	}
	if s.RoundCap <= 0 {
		return fmt.Errorf("%w: round cap must be positive, got %d", ErrInvalidScenario, s.RoundCap)
	}
	if !s.Stance.Valid() {
		return fmt.Errorf("%w: unknown stance %d", ErrInvalidScenario, int(s.Stance))
	}
	if err := s.Attacker.Validate(); err != nil {
		return fmt.Errorf("%w: attacker: %w", ErrInvalidScenario, err)
	}
	if err := s.Defender.Validate(); err != nil {
		return fmt.Errorf("%w: defender: %w", ErrInvalidScenario, err)
	}
	return nil
}

// Recorder observes a campaign as it is fought.
type Recorder interface {
	combat.Observer
	BeginEngagement(index int, startA, startB float64)
	EndEngagement(index int, outcome combat.Outcome)
}

// EngagementRecord is one link of the chain.
type EngagementRecord struct {
	Index   int            `json:"index"`
	StartA  float64        `json:"startA"`
	StartB  float64        `json:"startB"`
	Outcome combat.Outcome `json:"outcome"`
}

// Result is a fought campaign.
type Result struct {
	ID          string             `json:"id"`
	Scenario    Scenario           `json:"scenario"`
	Parameters  combat.Parameters  `json:"parameters"`
	Engagements []EngagementRecord `json:"engagements"`
	FinalA      float64            `json:"finalA"`
	FinalB      float64            `json:"finalB"`
}

type runConfig struct {
	recorder Recorder
	logger   *logging.Logger
	rng      combat.RandomSource
}

// Option customises Run.
type Option func(*runConfig)

// WithRecorder attaches a recorder that sees every engagement and shot.
func WithRecorder(recorder Recorder) Option {
	return func(c *runConfig) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithLogger overrides the logger taken from the context.
func WithLogger(logger *logging.Logger) Option {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRandomSource replaces the seeded source, typically with a scripted one in tests.
func WithRandomSource(rng combat.RandomSource) Option {
	return func(c *runConfig) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// Run derives the scenario's parameters once and fights its engagements in sequence,
// feeding each outcome's fractions into the next engagement. The chain stops early once
// either side is eliminated.
func Run(ctx context.Context, scenario Scenario, opts ...Option) (Result, error) {
	scenario = scenario.WithDefaults()
	if err := scenario.Validate(); err != nil {
		return Result{}, err
	}
	cfg := runConfig{logger: logging.LoggerFromContext(ctx)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.rng == nil {
		cfg.rng = combat.NewSeededSource(scenario.Seed)
	}

	params, err := combat.Derive(scenario.Attacker, scenario.Defender, scenario.Stance)
	if err != nil {
		return Result{}, err
	}

	result := Result{ID: uuid.NewString(), Scenario: scenario, Parameters: params}
	logger := cfg.logger.With(logging.String("campaign_id", result.ID), logging.Uint64("seed", scenario.Seed))
	logger.Info("campaign started",
		logging.String("stance", scenario.Stance.String()),
		logging.Int("engagements", scenario.Engagements),
		logging.Float64("hit_a", params.SideA.Hit.Value()),
		logging.Float64("hit_b", params.SideB.Hit.Value()),
	)

	observer := combat.MultiObserver(combat.TraceObserver(logger), recorderObserver(cfg.recorder))
	result.Engagements, err = fight(ctx, scenario, params, cfg.rng, cfg.recorder, observer)
	if err != nil {
		logger.Error("campaign failed", logging.Error(err))
		return Result{}, err
	}
	for _, record := range result.Engagements {
		logger.Info("engagement resolved", append(record.Outcome.LoggingFields(), logging.Int("engagement", record.Index))...)
	}
	last := result.Engagements[len(result.Engagements)-1].Outcome
	result.FinalA, result.FinalB = last.SideA, last.SideB
	return result, nil
}

// fight runs the chained engagements. It is shared by Run and the trial workers.
func fight(ctx context.Context, scenario Scenario, params combat.Parameters, rng combat.RandomSource, recorder Recorder, observer combat.Observer) ([]EngagementRecord, error) {
	records := make([]EngagementRecord, 0, min(scenario.Engagements, recordPrealloc))
	a, b := 1.0, 1.0
	for index := 0; index < scenario.Engagements; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if recorder != nil {
			recorder.BeginEngagement(index, a, b)
		}
		opts := []combat.EngageOption{combat.WithRoundCap(scenario.RoundCap)}
		if observer != nil {
			opts = append(opts, combat.WithObserver(observer))
		}
		outcome, err := combat.Engage(params, rng, a, b, opts...)
		if err != nil {
			return nil, fmt.Errorf("engagement %d: %w", index, err)
		}
		if recorder != nil {
			recorder.EndEngagement(index, outcome)
		}
		records = append(records, EngagementRecord{Index: index, StartA: a, StartB: b, Outcome: outcome})
		a, b = outcome.SideA, outcome.SideB
		if a == 0 || b == 0 {
			break
		}
	}
	return records, nil
}

func recorderObserver(recorder Recorder) combat.Observer {
	if recorder == nil {
		return nil
	}
	return recorder
}
