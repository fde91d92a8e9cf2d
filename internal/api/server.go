// Package api exposes persisted run results over HTTP: crossing counts
// and crossing features as JSON, plus a rendered chart page.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/crossing.report/internal/db"
	"github.com/banshee-data/crossing.report/internal/report"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db *db.DB
}

func NewServer(database *db.DB) *Server {
	return &Server{db: database}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
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
	mux.HandleFunc("/api/counts", s.listCounts)
	mux.HandleFunc("/api/crossings", s.listCrossings)
	mux.HandleFunc("/report", s.showReport)
	s.db.AttachAdminRoutes(mux)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// resolveRunID honours an explicit ?run= parameter, falling back to the
// most recent run in the store.
func (s *Server) resolveRunID(r *http.Request) (string, error) {
	if runID := r.URL.Query().Get("run"); runID != "" {
		return runID, nil
	}
	return s.db.LatestRunID(r.Context())
}

func (s *Server) listCounts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID, err := s.resolveRunID(r)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to resolve run: %v", err))
		return
	}
	if runID == "" {
		s.writeJSONError(w, http.StatusNotFound, "No runs recorded")
		return
	}

	counts, err := s.db.LoadCrossingCounts(r.Context(), runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve counts: %v", err))
		return
	}

	resp := struct {
		RunID  string      `json:"run_id"`
		Counts interface{} `json:"counts"`
	}{RunID: runID, Counts: counts}
	if counts == nil {
		resp.Counts = []struct{}{}
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write counts")
		return
	}
}

// crossingAPI is the wire shape for a crossing feature. The WKT string
// lets GIS clients consume the point without parsing x/y themselves.
type crossingAPI struct {
	GateID    int64   `json:"gate_id"`
	VesselID  string  `json:"vessel_id"`
	Direction string  `json:"direction"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	WKT       string  `json:"wkt"`
}

func (s *Server) listCrossings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID, err := s.resolveRunID(r)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to resolve run: %v", err))
		return
	}
	if runID == "" {
		s.writeJSONError(w, http.StatusNotFound, "No runs recorded")
		return
	}

	crossings, err := s.db.LoadCrossings(r.Context(), runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve crossings: %v", err))
		return
	}

	features := make([]crossingAPI, len(crossings))
	for i, c := range crossings {
		features[i] = crossingAPI{
			GateID:    c.GateID,
			VesselID:  c.VesselID,
			Direction: string(c.Direction),
			X:         c.Point.X,
			Y:         c.Point.Y,
			WKT:       c.Point.WKT(),
		}
	}

	if err := json.NewEncoder(w).Encode(features); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write crossings")
		return
	}
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID, err := s.resolveRunID(r)
	if err != nil {
		http.Error(w, "Failed to resolve run", http.StatusInternalServerError)
		return
	}
	if runID == "" {
		http.Error(w, "No runs recorded", http.StatusNotFound)
		return
	}

	counts, err := s.db.LoadCrossingCounts(r.Context(), runID)
	if err != nil {
		http.Error(w, "Failed to retrieve counts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	title := fmt.Sprintf("Gate Crossings (run %s)", runID)
	if err := report.RenderCountsChart(w, title, counts); err != nil {
		log.Printf("failed to render counts chart: %v", err)
	}
}
