package refcat

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ExtractSymbols is the symbol pool offered by the card extraction tool.
var ExtractSymbols = []string{"♠", "♥", "♦", "♣", "●", "■", "▲", "◆"}

// cardPeakRow matches a peak row in a raw card file: angle, an intervening
// field (typically d-spacing), then relative intensity.
var cardPeakRow = regexp.MustCompile(`^\s*(\d+\.\d+)\s+[\d.]+\s+([\d.]+)`)

// ExtractCardPeaks scans a raw card file and returns the angles of every
// peak row whose relative intensity is at least threshold.
func ExtractCardPeaks(path string, threshold float64) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("refcat: reading card %s: %w", path, err)
	}

	var angles []float64
	for _, line := range strings.Split(string(data), "\n") {
		m := cardPeakRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		angle, err1 := strconv.ParseFloat(m[1], 64)
		intensity, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if intensity >= threshold {
			angles = append(angles, angle)
		}
	}
	return angles, nil
}

var phaseNameJunk = regexp.MustCompile(`[^\w\p{Han}\-]`)

// CleanPhaseName normalizes a phase name derived from a file name or card
// header: basename without extension, with everything but word characters,
// CJK characters and hyphens stripped. Empty results become "UnknownPhase".
func CleanPhaseName(name string) string {
	name = filepath.Base(name)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = phaseNameJunk.ReplaceAllString(name, "")
	if name == "" {
		return "UnknownPhase"
	}
	return name
}

// WriteReferenceFile writes extracted peak angles as a normalized
// reference_<phase>.txt file in dir and returns its path.
func WriteReferenceFile(dir, phase, symbol string, threshold float64, angles []float64) (string, error) {
	path := filepath.Join(dir, ExtractedPrefix+phase+".txt")

	var b strings.Builder
	fmt.Fprintf(&b, "# Phase: %s\n", phase)
	fmt.Fprintf(&b, "# Symbol: %s\n", symbol)
	fmt.Fprintf(&b, "# Intensity Threshold: >= %g\n", threshold)
	b.WriteString("# Format: 2-Theta,PhaseName,Symbol\n")
	b.WriteString("# ----------------------------------\n")
	for _, a := range angles {
		fmt.Fprintf(&b, "%g,%s,%s\n", a, phase, symbol)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("refcat: writing %s: %w", path, err)
	}
	return path, nil
}
