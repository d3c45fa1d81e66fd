// Package replayplayer renders and verifies recorded campaign bundles.
package replayplayer

import (
	"errors"
	"fmt"
	"io"

	"driftpursuit/intercept/internal/combat"
	"driftpursuit/intercept/internal/replay"
)

// ErrInconsistentBundle reports a bundle whose events and frames disagree.
var ErrInconsistentBundle = errors.New("inconsistent replay bundle")

// Verify checks that the bundle describes a coherent chain: every engagement starts from
// the previous outcome and its shot count matches the recorded fire events.
func Verify(bundle replay.Bundle) error {
	shots := make(map[int]int)
	for _, event := range bundle.Events {
		if event.Kind == replay.KindFire {
			shots[event.Engagement]++
		}
	}
	prevA, prevB := 1.0, 1.0
	for i, frame := range bundle.Frames {
		//1.- Frames must be contiguous and chained.
		if frame.Engagement != i {
			return fmt.Errorf("%w: frame %d has engagement index %d", ErrInconsistentBundle, i, frame.Engagement)
		}
		if frame.StartA != prevA || frame.StartB != prevB {
			return fmt.Errorf("%w: engagement %d starts at %.4f/%.4f, previous outcome was %.4f/%.4f",
				ErrInconsistentBundle, i, frame.StartA, frame.StartB, prevA, prevB)
		}
		//2.- Every resolved shot must be present in the event log.
		if shots[i] != frame.Outcome.Events {
			return fmt.Errorf("%w: engagement %d reports %d shots but the log holds %d",
				ErrInconsistentBundle, i, frame.Outcome.Events, shots[i])
		}
		prevA, prevB = frame.Outcome.SideA, frame.Outcome.SideB
	}
	if len(bundle.Frames) > bundle.Header.Engagements && bundle.Header.Engagements > 0 {
		return fmt.Errorf("%w: %d frames for %d engagements", ErrInconsistentBundle, len(bundle.Frames), bundle.Header.Engagements)
	}
	return nil
}

// Render writes a human-readable timeline. Shots are only listed when verbose is set.
func Render(w io.Writer, bundle replay.Bundle, verbose bool) error {
	header := bundle.Header
	if _, err := fmt.Fprintf(w, "campaign %s seed=%d stance=%s\n", header.CampaignID, header.Seed, header.Stance); err != nil {
		return err
	}
	for _, side := range []combat.Side{combat.SideA, combat.SideB} {
		params := header.Parameters.Side(side)
		if _, err := fmt.Fprintf(w, "  side %s: health=%.0f damage=[%d,%d] hit=%s crit=%s interval=%dms\n",
			side, params.StartHealth, params.Damage.Low, params.Damage.High, params.Hit, params.Crit, params.FireInterval); err != nil {
			return err
		}
	}
	return bundle.Replay(func(event replay.Event) error {
		var err error
		switch event.Kind {
		case replay.KindBegin:
			_, err = fmt.Fprintf(w, "engagement %d start A=%.4f B=%.4f\n", event.Engagement, event.StartA, event.StartB)
		case replay.KindFire:
			if !verbose || event.Fire == nil {
				return nil
			}
			shot := event.Fire
			result := "miss"
			if shot.Hit {
				result = fmt.Sprintf("hit %d", shot.Damage)
				if shot.Critical {
					result += " crit"
				}
			}
			_, err = fmt.Fprintf(w, "  t=%6dms %s %s target=%d\n", shot.Time, shot.Shooter, result, shot.TargetHealth)
		case replay.KindEnd:
			if event.Outcome == nil {
				return nil
			}
			outcome := event.Outcome
			_, err = fmt.Fprintf(w, "engagement %d end A=%.4f B=%.4f shots=%d elapsed=%dms reason=%s\n",
				event.Engagement, outcome.SideA, outcome.SideB, outcome.Events, outcome.Elapsed, outcome.Reason)
		}
		return err
	})
}
