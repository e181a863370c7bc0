package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row is one raw table row before cleaning. Missing or unparseable fields
// surface as NaN so downstream cleaning can drop them uniformly.
type Row struct {
	Angle     float64
	Intensity float64
}

// ReadSpec is one concrete set of read parameters: an entry in a fallback
// chain.
type ReadSpec struct {
	SkipLines int
	Columns   [2]int
	Delimiter Delimiter
}

// ReadTable reads the file as a two-column numeric table using the detected
// format followed by a fixed chain of looser fallbacks, returning the first
// attempt that yields at least one fully numeric row. Lines beginning with
// '#' are treated as comments throughout. Returns ErrFormat (wrapped) when
// every attempt fails.
func ReadTable(path string) ([]Row, Format, error) {
	format := DetectFormat(path)
	lines, err := readDecoded(path, format.Encoding)
	if err != nil {
		return nil, format, fmt.Errorf("ingest: reading %s: %w", path, err)
	}

	for _, spec := range FallbackChain(format) {
		rows := parseTable(lines, spec)
		if countNumeric(rows) > 0 {
			return rows, format, nil
		}
	}
	return nil, format, fmt.Errorf("ingest: %s: %w", path, ErrFormat)
}

// FallbackChain is the ordered list of read attempts for a file whose
// detected format is f: the detection result itself, then whitespace, comma
// and tab splits at the same skip, then whitespace with the skip relaxed by
// ten lines. Readers try each in turn until one parses.
func FallbackChain(f Format) []ReadSpec {
	relaxedSkip := f.SkipLines - 10
	if relaxedSkip < 0 {
		relaxedSkip = 0
	}
	return []ReadSpec{
		{SkipLines: f.SkipLines, Columns: f.Columns, Delimiter: f.Delimiter},
		{SkipLines: f.SkipLines, Columns: f.Columns, Delimiter: Whitespace},
		{SkipLines: f.SkipLines, Columns: f.Columns, Delimiter: Comma},
		{SkipLines: f.SkipLines, Columns: f.Columns, Delimiter: Tab},
		{SkipLines: relaxedSkip, Columns: f.Columns, Delimiter: Whitespace},
	}
}

// parseTable applies one ReadSpec to the decoded lines. Rows whose candidate
// columns are absent or non-numeric become NaN rows rather than being
// dropped, so the caller can distinguish "parsed but dirty" from "nothing
// parsed at all".
func parseTable(lines []string, spec ReadSpec) []Row {
	var rows []Row
	for i, line := range lines {
		if i < spec.SkipLines {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := split(line, spec.Delimiter)
		rows = append(rows, Row{
			Angle:     fieldFloat(parts, spec.Columns[0]),
			Intensity: fieldFloat(parts, spec.Columns[1]),
		})
	}
	return rows
}

func split(line string, d Delimiter) []string {
	switch d {
	case Tab:
		return strings.Split(line, "\t")
	case Comma:
		return strings.Split(line, ",")
	default:
		return strings.Fields(line)
	}
}

func fieldFloat(parts []string, idx int) float64 {
	if idx >= len(parts) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(parts[idx]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func countNumeric(rows []Row) int {
	n := 0
	for _, r := range rows {
		if !math.IsNaN(r.Angle) && !math.IsNaN(r.Intensity) {
			n++
		}
	}
	return n
}
