// Package campaigntool renders balance responses for the campaign command.
package campaigntool

import (
	"fmt"
	"io"
	"strings"

	"driftpursuit/intercept/internal/balance"
	"driftpursuit/intercept/internal/campaign"
)

// Render writes either the trial summary or the engagement-by-engagement campaign trace.
func Render(w io.Writer, resp balance.Response) error {
	if resp.Summary != nil {
		return renderSummary(w, *resp.Summary)
	}
	result := resp.Result
	if result == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "campaign %s  stance=%s  seed=%d\n", result.ID, result.Scenario.Stance, result.Scenario.Seed); err != nil {
		return err
	}
	for _, record := range result.Engagements {
		if _, err := fmt.Fprintf(w, "Engagement %d: A %.4f -> %.4f  B %.4f -> %.4f  (%s after %d, %d shots)\n",
			record.Index+1, record.StartA, record.Outcome.SideA, record.StartB, record.Outcome.SideB,
			strings.ReplaceAll(string(record.Outcome.Reason), "_", " "), record.Outcome.Elapsed, record.Outcome.Events); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Final: A %.4f  B %.4f\n", result.FinalA, result.FinalB); err != nil {
		return err
	}
	if resp.BundleDir != "" {
		_, err := fmt.Fprintf(w, "replay bundle: %s\n", resp.BundleDir)
		return err
	}
	return nil
}

func renderSummary(w io.Writer, s campaign.Summary) error {
	if _, err := fmt.Fprintf(w, "trials=%d seed=%d mean engagements=%.2f\n", s.Trials, s.Seed, s.MeanEngagements); err != nil {
		return err
	}
	for _, side := range []struct {
		name string
		dist campaign.Distribution
	}{{"A", s.SideA}, {"B", s.SideB}} {
		if _, err := fmt.Fprintf(w, "side %s: mean=%.4f min=%.4f p10=%.4f p50=%.4f p90=%.4f max=%.4f\n",
			side.name, side.dist.Mean, side.dist.Min, side.dist.P10, side.dist.P50, side.dist.P90, side.dist.Max); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "A eliminated %.1f%%  B eliminated %.1f%%  both survived %.1f%%\n",
		100*s.SideAEliminated, 100*s.SideBEliminated, 100*s.BothSurvived)
	return err
}
