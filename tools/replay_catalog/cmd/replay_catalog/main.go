package main

import (
	"flag"
	"fmt"
	"os"

	"driftpursuit/intercept/internal/combat"
	replaycatalog "driftpursuit/intercept/tools/replay_catalog"
)

func main() {
	root := flag.String("dir", ".", "directory containing replay bundles")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	stanceFlag := flag.String("stance", "", "only list bundles recorded with this stance")
	flag.Parse()

	entries, err := replaycatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *stanceFlag != "" {
		stance, err := combat.ParseStance(*stanceFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		entries = replaycatalog.Filter(entries, stance)
	}

	if *jsonFlag {
		payload, err := replaycatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s (schema %d)\n", entry.ReplayPath, entry.Header.SchemaVersion)
		if entry.Header.CampaignID != "" {
			fmt.Printf("  campaign: %s\n", entry.Header.CampaignID)
		}
		fmt.Printf("  seed: %d stance: %s engagements: %d\n", entry.Header.Seed, entry.Header.Stance, entry.Header.Engagements)
		fmt.Printf("  header: %s\n", entry.HeaderPath)
	}
}
