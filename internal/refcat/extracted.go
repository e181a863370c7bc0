package refcat

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Plutor-05/xrd-figure/internal/monitoring"
)

// ExtractedPrefix is the naming convention for pre-extracted reference
// files: reference_<phase>.txt with `angle,phase,symbol` data lines.
const ExtractedPrefix = "reference_"

// LoadExtracted builds a catalog from pre-extracted reference files (the
// output of the card extraction tool). The phase name comes from the file
// stem after the reference_ prefix, falling back to the `# Phase:` header;
// the symbol comes from the `# Symbol:` header. A data line is accepted when
// its first comma field parses as a float; extracted files carry no
// intensity, so Intensity is zero for every peak.
func LoadExtracted(paths []string) (*Catalog, error) {
	cat := &Catalog{}
	for _, path := range paths {
		peaks, phase, err := parseExtractedFile(path)
		if err != nil {
			monitoring.Logf("refcat: skipping %s: %v", filepath.Base(path), err)
			continue
		}
		cat.Peaks = append(cat.Peaks, peaks...)
		cat.Phases = append(cat.Phases, phase)
	}
	if len(cat.Peaks) == 0 {
		return nil, ErrNoReferenceData
	}
	return cat, nil
}

func parseExtractedFile(path string) ([]Peak, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	stem := phaseFromPath(path)
	phase := strings.TrimPrefix(stem, ExtractedPrefix)
	if phase == stem {
		phase = "" // not following the naming convention; rely on the header
	}
	var symbol string
	var peaks []Peak

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "# Phase:"):
			if phase == "" {
				phase = strings.TrimSpace(strings.TrimPrefix(line, "# Phase:"))
			}
		case strings.HasPrefix(line, "# Symbol:"):
			symbol = strings.TrimSpace(strings.TrimPrefix(line, "# Symbol:"))
		case strings.HasPrefix(line, "#"):
			continue
		default:
			parts := strings.Split(line, ",")
			angle, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			if err != nil {
				continue
			}
			peaks = append(peaks, Peak{Angle: angle})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, "", err
	}
	if phase == "" {
		return nil, "", fmt.Errorf("no phase name in file name or headers")
	}
	if len(peaks) == 0 {
		return nil, "", fmt.Errorf("no valid peak lines")
	}
	for i := range peaks {
		peaks[i].PhaseID = phase
		peaks[i].Symbol = symbol
	}
	return peaks, phase, nil
}
