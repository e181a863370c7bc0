// Package api exposes the analysis pipeline and the run store over HTTP
// JSON endpoints.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Plutor-05/xrd-figure/internal/analysis"
	"github.com/Plutor-05/xrd-figure/internal/config"
	"github.com/Plutor-05/xrd-figure/internal/db"
	"github.com/Plutor-05/xrd-figure/internal/httputil"
	"github.com/Plutor-05/xrd-figure/internal/security"
	"github.com/Plutor-05/xrd-figure/internal/series"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the analysis API. The store may be nil, in which case runs
// are executed but not persisted and the stored-run endpoints return 503.
// A non-empty dataDir restricts the file paths clients may submit to that
// directory.
type Server struct {
	store   *db.DB
	tuning  *config.Tuning
	dataDir string
}

func NewServer(store *db.DB, tuning *config.Tuning, dataDir string) *Server {
	if tuning == nil {
		tuning = config.EmptyTuning()
	}
	return &Server{store: store, tuning: tuning, dataDir: dataDir}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/runs", s.handleListRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	mux.HandleFunc("/api/config", s.handleConfig)
	return mux
}

// analyzeRequest is the POST /api/analyze body. Paths are resolved on the
// server's filesystem.
type analyzeRequest struct {
	DataFile       string   `json:"data_file"`
	ReferenceFiles []string `json:"reference_files"`
	ExtractedRefs  bool     `json:"extracted_refs"`
}

// analyzeResponse carries the run identity plus its report. Peak detection
// output is included so callers still get results when no reference data
// was usable.
type analyzeResponse struct {
	RunID     string      `json:"run_id"`
	DataFile  string      `json:"data_file"`
	Peaks     []peakJSON  `json:"peaks"`
	NoRefData bool        `json:"no_ref_data"`
	Report    *reportJSON `json:"report,omitempty"`
	Persisted bool        `json:"persisted"`
}

type peakJSON struct {
	Angle     float64 `json:"angle"`
	Intensity float64 `json:"intensity"`
	Index     int     `json:"index"`
}

type reportJSON struct {
	TotalPeaks   int         `json:"total_peaks"`
	MatchedPeaks int         `json:"matched_peaks"`
	MatchRate    float64     `json:"match_rate"`
	PhaseStats   interface{} `json:"phase_stats"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.DataFile == "" {
		httputil.BadRequest(w, "data_file is required")
		return
	}
	if s.dataDir != "" {
		for _, p := range append([]string{req.DataFile}, req.ReferenceFiles...) {
			if err := security.ValidatePathWithinDirectory(p, s.dataDir); err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
		}
	}

	run, err := analysis.Analyze(analysis.Request{
		DataFile:       req.DataFile,
		ReferenceFiles: req.ReferenceFiles,
		ExtractedRefs:  req.ExtractedRefs,
		Tuning:         s.tuning,
	})
	if err != nil {
		var insufficient *series.InsufficientDataError
		if errors.As(err, &insufficient) {
			httputil.UnprocessableEntity(w, err.Error())
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}

	resp := analyzeResponse{
		RunID:     run.ID,
		DataFile:  run.DataFile,
		NoRefData: run.NoRefData,
	}
	for _, p := range run.Detected {
		resp.Peaks = append(resp.Peaks, peakJSON{Angle: p.Angle, Intensity: p.Intensity, Index: p.Index})
	}
	if run.Report != nil {
		resp.Report = &reportJSON{
			TotalPeaks:   run.Report.TotalPeaks,
			MatchedPeaks: run.Report.MatchedPeaks,
			MatchRate:    run.Report.MatchRate,
			PhaseStats:   run.Report.PhaseStats,
		}
	}

	if s.store != nil {
		if err := s.store.SaveRun(run); err != nil {
			log.Printf("api: persisting run %s: %v", run.ID, err)
		} else {
			resp.Persisted = true
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.store == nil {
		httputil.ServiceUnavailable(w, "run store not configured")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []db.RunSummary{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.ServiceUnavailable(w, "run store not configured")
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		httputil.NotFound(w, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		run, err := s.store.GetRun(runID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "run not found")
				return
			}
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, run)
	case http.MethodDelete:
		if err := s.store.DeleteRun(runID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "run not found")
				return
			}
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"deleted": runID})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"peak_height":         s.tuning.GetPeakHeight(),
		"peak_distance":       s.tuning.GetPeakDistance(),
		"peak_prominence":     s.tuning.GetPeakProminence(),
		"peak_width":          s.tuning.GetPeakWidth(),
		"match_tolerance":     s.tuning.GetMatchTolerance(),
		"match_strategy":      s.tuning.GetMatchStrategy(),
		"angle_min":           s.tuning.GetAngleMin(),
		"angle_max":           s.tuning.GetAngleMax(),
		"intensity_threshold": s.tuning.GetIntensityThreshold(),
		"smooth_window":       s.tuning.GetSmoothWindow(),
	})
}
