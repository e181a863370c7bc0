// Command xrd runs the diffraction analysis pipeline over an experimental
// data file and a set of reference files, printing the match report and
// optionally persisting the run. With -listen it serves the HTTP API
// instead of running once.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/Plutor-05/xrd-figure/internal/analysis"
	"github.com/Plutor-05/xrd-figure/internal/api"
	"github.com/Plutor-05/xrd-figure/internal/config"
	"github.com/Plutor-05/xrd-figure/internal/db"
	"github.com/Plutor-05/xrd-figure/internal/version"
)

type refList []string

func (r *refList) String() string { return strings.Join(*r, ",") }

func (r *refList) Set(v string) error {
	*r = append(*r, v)
	return nil
}

var (
	dataFile    = flag.String("data", "", "Experimental data file (angle, intensity)")
	configPath  = flag.String("config", "", "Tuning config JSON file")
	strategy    = flag.String("strategy", "", "Match strategy: phase-first or peak-first (overrides config)")
	extracted   = flag.Bool("extracted", false, "Treat reference files as pre-extracted reference_*.txt files")
	dbPath      = flag.String("db", "", "Sqlite database to record runs in (optional)")
	listen      = flag.String("listen", "", "Serve the HTTP API on this address instead of running once")
	dataDir     = flag.String("data-dir", "", "Restrict API-submitted file paths to this directory")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	var refs refList
	flag.Var(&refs, "ref", "Reference file (repeatable)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xrd %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	tuning := config.EmptyTuning()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuning(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *strategy != "" {
		tuning.MatchStrategy = strategy
	}

	var store *db.DB
	if *dbPath != "" {
		var err error
		store, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()
	}

	if *listen != "" {
		server := api.NewServer(store, tuning, *dataDir)
		log.Printf("Serving analysis API on %s", *listen)
		if err := http.ListenAndServe(*listen, api.LoggingMiddleware(server.ServeMux())); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	if *dataFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: xrd -data <file> [-ref <file>]... [-config <file.json>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	run, err := analysis.Analyze(analysis.Request{
		DataFile:       *dataFile,
		ReferenceFiles: refs,
		ExtractedRefs:  *extracted,
		Tuning:         tuning,
	})
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	if store != nil {
		if err := store.SaveRun(run); err != nil {
			log.Printf("Failed to record run: %v", err)
		}
	}

	printRun(run)
}

func printRun(run *analysis.Run) {
	fmt.Printf("Run %s: %s\n", run.ID, run.DataFile)
	fmt.Printf("Detected %d peaks\n", len(run.Detected))
	for _, p := range run.Detected {
		fmt.Printf("  %8.3f°  %12.1f\n", p.Angle, p.Intensity)
	}

	if run.NoRefData {
		fmt.Println("No phase identification available (no usable reference data)")
		return
	}

	fmt.Printf("\nMatches (%s, tolerance %g°):\n", run.Matches.Strategy, run.Matches.Tolerance)
	for _, m := range run.Matches.Matches {
		fmt.Printf("  %8.3f° -> %8.3f°  %s %s  Δ%.3f°  quality %.2f\n",
			m.Detected.Angle, m.Ref.Angle, m.Ref.Symbol, m.Ref.PhaseID,
			m.AngleDelta, m.Quality)
	}
	for _, p := range run.Matches.Unmatched {
		fmt.Printf("  %8.3f°  unidentified\n", p.Angle)
	}

	r := run.Report
	fmt.Printf("\n%d/%d peaks matched (%.1f%%)\n", r.MatchedPeaks, r.TotalPeaks, r.MatchRate)
	for _, ps := range r.PhaseStats {
		fmt.Printf("  %-20s %3d  %5.1f%%\n", ps.PhaseID, ps.Count, ps.Percentage)
	}
}
