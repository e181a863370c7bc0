package refcat

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoad_TwoPhases(t *testing.T) {
	dir := t.TempDir()
	quartz := writeFile(t, dir, "quartz.txt", "# card\n20.85\t22\n26.64\t100\n36.54\t8\n")
	calcite := writeFile(t, dir, "calcite.txt", "23.02,12\n29.41,100\n35.97,14\n")

	cat, err := Load([]string{quartz, calcite})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cat.Phases) != 2 {
		t.Fatalf("Phases = %v, want 2", cat.Phases)
	}
	if cat.Phases[0] != "quartz" || cat.Phases[1] != "calcite" {
		t.Errorf("phase order = %v, want [quartz calcite]", cat.Phases)
	}
	if len(cat.Peaks) != 6 {
		t.Errorf("Peaks = %d, want 6", len(cat.Peaks))
	}
	for _, p := range cat.Peaks {
		if p.PhaseID == "quartz" && p.Symbol != Symbols[0] {
			t.Errorf("quartz symbol = %q, want %q", p.Symbol, Symbols[0])
		}
		if p.PhaseID == "calcite" && p.Symbol != Symbols[1] {
			t.Errorf("calcite symbol = %q, want %q", p.Symbol, Symbols[1])
		}
	}
}

func TestLoad_BadFileSkipped(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "20.85\t22\n26.64\t100\n")
	bad := writeFile(t, dir, "bad.txt", "nothing numeric here\nat all\n")

	cat, err := Load([]string{bad, good})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cat.Phases) != 1 || cat.Phases[0] != "good" {
		t.Errorf("Phases = %v, want [good]", cat.Phases)
	}
}

func TestLoad_AllBad(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.txt", "nothing numeric\n")

	_, err := Load([]string{bad})
	if !errors.Is(err, ErrNoReferenceData) {
		t.Errorf("want ErrNoReferenceData, got %v", err)
	}
	if _, err := Load(nil); !errors.Is(err, ErrNoReferenceData) {
		t.Errorf("empty list: want ErrNoReferenceData, got %v", err)
	}
}

func TestLoad_SymbolPoolCap(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < len(Symbols)+3; i++ {
		name := filepath.Join(dir, "phase"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(name, []byte("20.0\t50\n25.0\t100\n"), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
		paths = append(paths, name)
	}

	cat, err := Load(paths)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cat.Phases) != len(Symbols) {
		t.Errorf("loaded %d phases, want cap %d", len(cat.Phases), len(Symbols))
	}
}

func TestLoad_OutOfRangeRowsDropped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "phase.txt", "20.0\t50\n-3.0\t100\n185.0\t10\n30.0\t-5\n40.0\t80\n")

	cat, err := Load([]string{path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cat.Peaks) != 2 {
		t.Errorf("Peaks = %d, want 2 (invalid rows dropped)", len(cat.Peaks))
	}
}

func TestByPhase(t *testing.T) {
	cat := &Catalog{
		Phases: []string{"a", "b"},
		Peaks: []Peak{
			{Angle: 10, PhaseID: "a"},
			{Angle: 20, PhaseID: "b"},
			{Angle: 30, PhaseID: "a"},
		},
	}
	groups := cat.ByPhase()
	if len(groups) != 2 || len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Fatalf("ByPhase shape wrong: %+v", groups)
	}
	if groups[0][0].Angle != 10 || groups[0][1].Angle != 30 {
		t.Errorf("phase a peaks out of order: %+v", groups[0])
	}
}

func TestLoadExtracted_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	angles := []float64{20.85, 26.64, 50.14}
	path, err := WriteReferenceFile(dir, "quartz", "♠", 40, angles)
	if err != nil {
		t.Fatalf("WriteReferenceFile failed: %v", err)
	}
	if filepath.Base(path) != "reference_quartz.txt" {
		t.Errorf("path = %s, want reference_quartz.txt", path)
	}

	cat, err := LoadExtracted([]string{path})
	if err != nil {
		t.Fatalf("LoadExtracted failed: %v", err)
	}
	if len(cat.Phases) != 1 || cat.Phases[0] != "quartz" {
		t.Fatalf("Phases = %v, want [quartz]", cat.Phases)
	}
	if len(cat.Peaks) != 3 {
		t.Fatalf("Peaks = %d, want 3", len(cat.Peaks))
	}
	for i, p := range cat.Peaks {
		if p.Angle != angles[i] {
			t.Errorf("peak %d angle = %v, want %v", i, p.Angle, angles[i])
		}
		if p.Symbol != "♠" {
			t.Errorf("peak %d symbol = %q, want ♠", i, p.Symbol)
		}
	}
}

func TestLoadExtracted_PhaseFromHeader(t *testing.T) {
	dir := t.TempDir()
	content := "# Phase: rutile\n# Symbol: ●\n27.45,rutile,●\n36.09,rutile,●\n"
	path := writeFile(t, dir, "oddname.txt", content)

	cat, err := LoadExtracted([]string{path})
	if err != nil {
		t.Fatalf("LoadExtracted failed: %v", err)
	}
	if cat.Phases[0] != "rutile" {
		t.Errorf("phase = %q, want rutile from header", cat.Phases[0])
	}
}

func TestLoadExtracted_SkipsBadLines(t *testing.T) {
	dir := t.TempDir()
	content := "# Phase: x\nnot-a-number,x,●\n27.45,x,●\n"
	path := writeFile(t, dir, "reference_x.txt", content)

	cat, err := LoadExtracted([]string{path})
	if err != nil {
		t.Fatalf("LoadExtracted failed: %v", err)
	}
	if len(cat.Peaks) != 1 {
		t.Errorf("Peaks = %d, want 1", len(cat.Peaks))
	}
}

func TestExtractCardPeaks(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"PDF#46-1045: QM=Star",
		"Quartz syn",
		"   20.860   4.2550    22.0",
		"   26.640   3.3435   100.0",
		"   36.544   2.4569     8.0",
		"   50.139   1.8179    14.0",
		"garbage line",
	}, "\n")
	path := writeFile(t, dir, "card.txt", content)

	angles, err := ExtractCardPeaks(path, 14)
	if err != nil {
		t.Fatalf("ExtractCardPeaks failed: %v", err)
	}
	want := []float64{20.860, 26.640, 50.139}
	if len(angles) != len(want) {
		t.Fatalf("angles = %v, want %v", angles, want)
	}
	for i := range want {
		if angles[i] != want[i] {
			t.Errorf("angle %d = %v, want %v", i, angles[i], want[i])
		}
	}
}

func TestCleanPhaseName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/data/cards/quartz.txt", "quartz"},
		{"Fe3O4 (magnetite).txt", "Fe3O4magnetite"},
		{"石英.txt", "石英"},
		{"___...___", "___"},
		{"...", "UnknownPhase"},
	}
	for _, tc := range cases {
		if got := CleanPhaseName(tc.in); got != tc.want {
			t.Errorf("CleanPhaseName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
