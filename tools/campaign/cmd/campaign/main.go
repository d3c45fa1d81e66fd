package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"driftpursuit/intercept/internal/balance"
	"driftpursuit/intercept/internal/campaign"
	"driftpursuit/intercept/internal/combat"
	"driftpursuit/intercept/internal/logging"
	campaigntool "driftpursuit/intercept/tools/campaign"
)

func main() {
	attackerHull := flag.String("attacker-hull", "interceptor", "catalog hull for side A")
	attackerWeapon := flag.String("attacker-weapon", "avalanche", "catalog weapon for side A")
	attackerKills := flag.Int("attacker-kills", 0, "kill count for side A")
	defenderHull := flag.String("defender-hull", "scout", "catalog hull for side B")
	defenderWeapon := flag.String("defender-weapon", "single-plasma", "catalog weapon for side B")
	defenderKills := flag.Int("defender-kills", 0, "kill count for side B")
	stance := flag.String("stance", "aggressive", "tactical stance shared by both sides")
	engagements := flag.Int("engagements", campaign.DefaultEngagements, "chained engagements per campaign")
	seed := flag.Uint64("seed", 0, "RNG seed")
	trials := flag.Int("trials", 0, "sample this many campaigns instead of fighting one")
	workers := flag.Int("workers", 0, "trial workers (0 uses GOMAXPROCS)")
	replayDir := flag.String("replay-dir", "", "record the campaign as a replay bundle under this directory")
	asJSON := flag.Bool("json", false, "emit the response as JSON")
	verbose := flag.Bool("v", false, "log every shot to stderr")
	flag.Parse()

	parsed, err := combat.ParseStance(*stance)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	level := logging.WarnLevel
	if *verbose {
		level = logging.DebugLevel
	}
	logger := logging.NewWriterLogger(os.Stderr, level)

	service := balance.NewService(balance.Defaults{Seed: *seed, Stance: parsed, Workers: *workers},
		balance.WithReplayDir(*replayDir), balance.WithLogger(logger))
	req := balance.Request{
		Attacker:    balance.UnitSpec{Hull: *attackerHull, Weapon: *attackerWeapon, Kills: *attackerKills},
		Defender:    balance.UnitSpec{Hull: *defenderHull, Weapon: *defenderWeapon, Kills: *defenderKills},
		Stance:      *stance,
		Engagements: *engagements,
		Seed:        seed,
		Trials:      *trials,
		Record:      *replayDir != "",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	resp, err := service.Simulate(ctx, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			fmt.Fprintln(os.Stderr, "encode error:", err)
			os.Exit(3)
		}
		return
	}
	if err := campaigntool.Render(os.Stdout, resp); err != nil {
		fmt.Fprintln(os.Stderr, "render error:", err)
		os.Exit(3)
	}
}
