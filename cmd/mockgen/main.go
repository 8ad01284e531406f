package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"teammetrics/cmd/mockgen/engine"
	"teammetrics/internal/daterange"
	"teammetrics/internal/snapshot"
)

// mockgen seals a synthetic snapshot so the presentation side can be
// developed without source-control or tracker credentials.
func main() {
	scenario := flag.String("scenario", "steady", "Scenario to generate: steady, chaos")
	rangeSpec := flag.String("date-range", "90d", "Reporting window of the generated snapshot")
	env := flag.String("env", "prod", "Environment key of the generated snapshot")
	teams := flag.Int("teams", 3, "Number of teams to generate")
	persons := flag.Int("persons", 5, "Members per team")
	outDir := flag.String("out", "./data", "Output directory for the snapshot file")
	flag.Parse()

	window, err := daterange.Parse(*rangeSpec)
	if err != nil {
		fmt.Printf("Invalid date range: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating scenario '%s' (%d teams, %d persons each) for %s/%s...\n",
		*scenario, *teams, *persons, window.Label, *env)

	snap := engine.Generate(engine.GeneratorConfig{
		Scenario: *scenario,
		Teams:    *teams,
		Persons:  *persons,
		Window:   window,
		Env:      *env,
		Now:      time.Now(),
	})

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Printf("Failed to create output directory: %v\n", err)
		os.Exit(1)
	}
	if err := snapshot.NewStore(*outDir).Write(snap); err != nil {
		fmt.Printf("Failed to save mock snapshot: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
