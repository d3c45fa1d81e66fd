package campaign

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"driftpursuit/intercept/internal/combat"
	"driftpursuit/intercept/internal/logging"
)

// Distribution summarises one side's final health fractions across trials.
type Distribution struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P10  float64 `json:"p10"`
	P50  float64 `json:"p50"`
	P90  float64 `json:"p90"`
}

// Summary aggregates a batch of independently seeded campaigns.
type Summary struct {
	Trials          int          `json:"trials"`
	Seed            uint64       `json:"seed"`
	SideA           Distribution `json:"sideA"`
	SideB           Distribution `json:"sideB"`
	SideAEliminated float64      `json:"sideAEliminated"`
	SideBEliminated float64      `json:"sideBEliminated"`
	BothSurvived    float64      `json:"bothSurvived"`
	MeanEngagements float64      `json:"meanEngagements"`
}

type trialResult struct {
	finalA, finalB float64
	engagements    int
}

// RunTrials fights the scenario trials times on a pool of workers. Trial i draws from PCG
// stream i of the scenario seed, so the summary is identical for any worker count.
func RunTrials(ctx context.Context, scenario Scenario, trials, workers int) (Summary, error) {
	scenario = scenario.WithDefaults()
	if err := scenario.Validate(); err != nil {
		return Summary{}, err
	}
	if trials <= 0 {
		return Summary{}, fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidScenario, trials)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, trials)

	params, err := combat.Derive(scenario.Attacker, scenario.Defender, scenario.Stance)
	if err != nil {
		return Summary{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]trialResult, trials)
	jobs := make(chan int)
	var (
		wg        sync.WaitGroup
		processed atomic.Int64
		errOnce   sync.Once
		firstErr  error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				//1.- Each trial owns its stream so results never depend on scheduling.
				rng := combat.NewStreamSource(scenario.Seed, uint64(index))
				records, err := fight(ctx, scenario, params, rng, nil, nil)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				last := records[len(records)-1].Outcome
				results[index] = trialResult{finalA: last.SideA, finalB: last.SideB, engagements: len(records)}
				processed.Add(1)
			}
		}()
	}

feed:
	for index := 0; index < trials; index++ {
		select {
		case jobs <- index:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return Summary{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	summary := summarize(results)
	summary.Seed = scenario.Seed
	logging.LoggerFromContext(ctx).Info("trials complete",
		logging.Int("trials", int(processed.Load())),
		logging.Int("workers", workers),
		logging.Float64("mean_a", summary.SideA.Mean),
		logging.Float64("mean_b", summary.SideB.Mean),
		logging.Float64("side_b_eliminated", summary.SideBEliminated),
	)
	return summary, nil
}

func summarize(results []trialResult) Summary {
	n := len(results)
	summary := Summary{Trials: n}
	if n == 0 {
		return summary
	}
	a := make([]float64, n)
	b := make([]float64, n)
	var engagements, deadA, deadB, both int
	for i, result := range results {
		a[i], b[i] = result.finalA, result.finalB
		engagements += result.engagements
		if result.finalA == 0 {
			deadA++
		}
		if result.finalB == 0 {
			deadB++
		}
		if result.finalA > 0 && result.finalB > 0 {
			both++
		}
	}
	summary.SideA = distribution(a)
	summary.SideB = distribution(b)
	summary.SideAEliminated = float64(deadA) / float64(n)
	summary.SideBEliminated = float64(deadB) / float64(n)
	summary.BothSurvived = float64(both) / float64(n)
	summary.MeanEngagements = float64(engagements) / float64(n)
	return summary
}

func distribution(values []float64) Distribution {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	total := 0.0
	for _, v := range sorted {
		total += v
	}
	return Distribution{
		Mean: total / float64(len(sorted)),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P10:  percentile(sorted, 0.10),
		P50:  percentile(sorted, 0.50),
		P90:  percentile(sorted, 0.90),
	}
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []float64, q float64) float64 {
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	return sorted[max(0, min(rank, len(sorted)-1))]
}
