package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"driftpursuit/intercept/internal/replay"
	replayplayer "driftpursuit/intercept/tools/replay_player"
)

func main() {
	path := flag.String("path", "", "Path to a bundle directory or manifest.json")
	asJSON := flag.Bool("json", false, "emit the decoded bundle as JSON")
	verbose := flag.Bool("v", false, "list every shot")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	bundle, err := replay.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	if err := replayplayer.Verify(bundle); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(bundle); err != nil {
			fmt.Fprintln(os.Stderr, "encode error:", err)
			os.Exit(3)
		}
		return
	}
	if err := replayplayer.Render(os.Stdout, bundle, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "render error:", err)
		os.Exit(3)
	}
}
