// Package refcat builds the reference-phase catalog: theoretical peak
// positions loaded from card files or pre-extracted reference files, stamped
// with a phase identifier and a display symbol.
package refcat

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Plutor-05/xrd-figure/internal/ingest"
	"github.com/Plutor-05/xrd-figure/internal/monitoring"
)

// ErrNoReferenceData reports that zero reference files yielded usable peaks.
var ErrNoReferenceData = errors.New("refcat: no usable reference data")

// Symbols is the ordered pool of display symbols assigned to phases as their
// files load. Its length is also the soft cap on reference files per catalog.
var Symbols = []string{
	"①", "②", "③", "④", "⑤", "⑥", "⑦", "⑧", "⑨", "⑩",
	"⑪", "⑫", "⑬", "⑭", "⑮", "⑯", "⑰", "⑱", "⑲", "⑳",
}

// Peak is one theoretical reference peak.
type Peak struct {
	Angle     float64
	Intensity float64
	PhaseID   string
	Symbol    string
}

// Catalog is the merged set of reference peaks across all loaded phases.
// Phases preserves load order, which matching strategies rely on for
// deterministic results.
type Catalog struct {
	Peaks  []Peak
	Phases []string
}

// ByPhase groups the catalog's peaks by phase, preserving both phase load
// order and per-phase peak order.
func (c *Catalog) ByPhase() [][]Peak {
	groups := make([][]Peak, len(c.Phases))
	pos := make(map[string]int, len(c.Phases))
	for i, p := range c.Phases {
		pos[p] = i
	}
	for _, pk := range c.Peaks {
		i := pos[pk.PhaseID]
		groups[i] = append(groups[i], pk)
	}
	return groups
}

// Load builds a catalog from raw reference card files. The phase id is each
// file's base name without extension; symbols come from the Symbols pool in
// order. Files beyond the pool are skipped with a warning. Per-file parse
// failures are logged and skipped; Load fails with ErrNoReferenceData only
// when no file at all produced peaks.
func Load(paths []string) (*Catalog, error) {
	cat := &Catalog{}
	for i, path := range paths {
		if i >= len(Symbols) {
			monitoring.Logf("refcat: symbol pool exhausted, skipping %s", filepath.Base(path))
			break
		}
		phase := phaseFromPath(path)
		peaks, err := parseCardFile(path, phase, Symbols[i])
		if err != nil {
			monitoring.Logf("refcat: skipping %s: %v", filepath.Base(path), err)
			continue
		}
		cat.Peaks = append(cat.Peaks, peaks...)
		cat.Phases = append(cat.Phases, phase)
		monitoring.Logf("refcat: loaded %d peaks for phase %q", len(peaks), phase)
	}
	if len(cat.Peaks) == 0 {
		return nil, ErrNoReferenceData
	}
	return cat, nil
}

func phaseFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

// parseCardFile reads one card file through the detection heuristic and its
// fallback chain, then filters rows to valid angle/intensity ranges and
// stamps phase and symbol.
func parseCardFile(path, phase, symbol string) ([]Peak, error) {
	rows, _, err := ingest.ReadTable(path)
	if err != nil {
		return nil, err
	}

	var peaks []Peak
	for _, r := range rows {
		if math.IsNaN(r.Angle) || math.IsNaN(r.Intensity) {
			continue
		}
		if r.Angle <= 0 || r.Angle >= 180 || r.Intensity < 0 {
			continue
		}
		peaks = append(peaks, Peak{Angle: r.Angle, Intensity: r.Intensity, PhaseID: phase, Symbol: symbol})
	}
	if len(peaks) == 0 {
		return nil, fmt.Errorf("no peaks in valid range")
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Angle < peaks[j].Angle })
	return peaks, nil
}
