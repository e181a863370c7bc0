package match

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Plutor-05/xrd-figure/internal/peaks"
	"github.com/Plutor-05/xrd-figure/internal/refcat"
)

func TestBuildReport(t *testing.T) {
	matches := []Match{
		{Detected: peaks.Peak{Angle: 28.4}, Ref: refcat.Peak{PhaseID: "quartz"}},
		{Detected: peaks.Peak{Angle: 30.0}, Ref: refcat.Peak{PhaseID: "quartz"}},
		{Detected: peaks.Peak{Angle: 44.2}, Ref: refcat.Peak{PhaseID: "calcite"}},
		{Detected: peaks.Peak{Angle: 50.1}, Ref: refcat.Peak{PhaseID: "quartz"}},
	}

	r := BuildReport(8, matches)
	if r.TotalPeaks != 8 || r.MatchedPeaks != 4 {
		t.Errorf("counts = %d/%d, want 8/4", r.TotalPeaks, r.MatchedPeaks)
	}
	if r.MatchRate != 50 {
		t.Errorf("MatchRate = %v, want 50", r.MatchRate)
	}

	want := []PhaseStat{
		{PhaseID: "quartz", Count: 3, Percentage: 75},
		{PhaseID: "calcite", Count: 1, Percentage: 25},
	}
	if diff := cmp.Diff(want, r.PhaseStats); diff != "" {
		t.Errorf("PhaseStats mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildReport_ZeroPeaks(t *testing.T) {
	r := BuildReport(0, nil)
	if r.MatchRate != 0 {
		t.Errorf("MatchRate = %v, want 0 for zero detected peaks", r.MatchRate)
	}
	if len(r.PhaseStats) != 0 {
		t.Errorf("PhaseStats = %v, want empty", r.PhaseStats)
	}
}

func TestBuildReport_TieOrder(t *testing.T) {
	matches := []Match{
		{Ref: refcat.Peak{PhaseID: "b"}},
		{Ref: refcat.Peak{PhaseID: "a"}},
	}
	r := BuildReport(2, matches)
	if r.PhaseStats[0].PhaseID != "a" || r.PhaseStats[1].PhaseID != "b" {
		t.Errorf("equal counts must order by phase id, got %+v", r.PhaseStats)
	}
}
