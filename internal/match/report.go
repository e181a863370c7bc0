package match

import "sort"

// PhaseStat is the per-phase slice of a report.
type PhaseStat struct {
	PhaseID    string  `json:"phase_id"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // of matched peaks
}

// Report summarizes one matching run.
type Report struct {
	TotalPeaks   int         `json:"total_peaks"`
	MatchedPeaks int         `json:"matched_peaks"`
	MatchRate    float64     `json:"match_rate"` // percent of detected peaks matched
	PhaseStats   []PhaseStat `json:"phase_stats"`
}

// BuildReport aggregates a match set into counts, the overall match rate and
// a per-phase breakdown ordered by descending match count (phase id breaks
// ties). totalPeaks is the full detected-peak count, which can exceed the
// number of matches. Pure function, no I/O.
func BuildReport(totalPeaks int, matches []Match) *Report {
	r := &Report{
		TotalPeaks:   totalPeaks,
		MatchedPeaks: len(matches),
	}
	if totalPeaks > 0 {
		r.MatchRate = float64(len(matches)) / float64(totalPeaks) * 100
	}

	counts := make(map[string]int)
	for _, m := range matches {
		counts[m.Ref.PhaseID]++
	}
	for phase, n := range counts {
		r.PhaseStats = append(r.PhaseStats, PhaseStat{
			PhaseID:    phase,
			Count:      n,
			Percentage: float64(n) / float64(len(matches)) * 100,
		})
	}
	sort.Slice(r.PhaseStats, func(i, j int) bool {
		if r.PhaseStats[i].Count != r.PhaseStats[j].Count {
			return r.PhaseStats[i].Count > r.PhaseStats[j].Count
		}
		return r.PhaseStats[i].PhaseID < r.PhaseStats[j].PhaseID
	})
	return r
}
