// Package analysis wires the full diffraction pipeline: ingest an
// experimental data file, clean it into a canonical sample, detect peaks,
// match them against a reference catalog and summarize the result. A run is
// synchronous and has no shared mutable state, so distinct runs may execute
// concurrently.
package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Plutor-05/xrd-figure/internal/config"
	"github.com/Plutor-05/xrd-figure/internal/ingest"
	"github.com/Plutor-05/xrd-figure/internal/match"
	"github.com/Plutor-05/xrd-figure/internal/monitoring"
	"github.com/Plutor-05/xrd-figure/internal/peaks"
	"github.com/Plutor-05/xrd-figure/internal/refcat"
	"github.com/Plutor-05/xrd-figure/internal/series"
)

// Request names the inputs of one pipeline run.
type Request struct {
	DataFile       string
	ReferenceFiles []string
	// ExtractedRefs selects the pre-extracted reference_*.txt loader
	// instead of the raw card parser.
	ExtractedRefs bool
	Tuning        *config.Tuning
}

// Run is the outcome of one pipeline invocation. Detection results are
// always populated on success; Matches and Report stay nil when no
// reference data was usable (NoRefData is set instead, so the run is still
// reportable as "no phase identification available").
type Run struct {
	ID        string
	DataFile  string
	StartedAt time.Time
	Duration  time.Duration

	Sample    *series.Sample
	Detected  []peaks.Peak
	Catalog   *refcat.Catalog
	Matches   *match.Result
	Report    *match.Report
	NoRefData bool
}

// Analyze executes the pipeline for one request.
//
// Fatal errors: unreadable/unparseable data file, insufficient cleaned data,
// invalid tolerance. Zero usable reference files is not fatal: detection
// results are returned with NoRefData set.
func Analyze(req Request) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		DataFile:  req.DataFile,
		StartedAt: time.Now(),
	}
	tuning := req.Tuning
	if tuning == nil {
		tuning = config.EmptyTuning()
	}

	monitoring.Logf("analysis: run %s: loading %s", run.ID, req.DataFile)
	rows, format, err := ingest.ReadTable(req.DataFile)
	if err != nil {
		return nil, fmt.Errorf("loading experimental data: %w", err)
	}
	monitoring.Logf("analysis: run %s: read %d rows (%s, %s delimited, skip %d)",
		run.ID, len(rows), format.Encoding, format.Delimiter, format.SkipLines)

	raw := make([]series.Point, len(rows))
	for i, r := range rows {
		raw[i] = series.Point{Angle: r.Angle, Intensity: r.Intensity}
	}
	sample, err := series.Clean(raw, &series.CleanConfig{
		AngleMin:           tuning.GetAngleMin(),
		AngleMax:           tuning.GetAngleMax(),
		IntensityThreshold: tuning.GetIntensityThreshold(),
		SmoothWindow:       tuning.GetSmoothWindow(),
	})
	if err != nil {
		return nil, fmt.Errorf("cleaning experimental data: %w", err)
	}
	run.Sample = sample

	params := peaks.DefaultParams()
	params.Height = tuning.GetPeakHeight()
	params.Distance = tuning.GetPeakDistance()
	params.Prominence = tuning.GetPeakProminence()
	params.Width = tuning.GetPeakWidth()
	run.Detected = peaks.Detect(sample, params)
	monitoring.Logf("analysis: run %s: detected %d peaks", run.ID, len(run.Detected))

	strategy, err := match.ParseStrategy(tuning.GetMatchStrategy())
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(req)
	if err != nil {
		if errors.Is(err, refcat.ErrNoReferenceData) {
			monitoring.Logf("analysis: run %s: no usable reference data, skipping matching", run.ID)
			run.NoRefData = true
			run.Duration = time.Since(run.StartedAt)
			return run, nil
		}
		return nil, err
	}
	run.Catalog = cat

	result, err := match.Run(run.Detected, cat, tuning.GetMatchTolerance(), strategy)
	if err != nil {
		return nil, err
	}
	run.Matches = result
	run.Report = match.BuildReport(len(run.Detected), result.Matches)
	run.Duration = time.Since(run.StartedAt)

	monitoring.Logf("analysis: run %s: %d/%d peaks matched (%.1f%%) in %s",
		run.ID, run.Report.MatchedPeaks, run.Report.TotalPeaks, run.Report.MatchRate, run.Duration)
	return run, nil
}

func loadCatalog(req Request) (*refcat.Catalog, error) {
	if len(req.ReferenceFiles) == 0 {
		return nil, refcat.ErrNoReferenceData
	}
	if req.ExtractedRefs {
		return refcat.LoadExtracted(req.ReferenceFiles)
	}
	return refcat.Load(req.ReferenceFiles)
}
