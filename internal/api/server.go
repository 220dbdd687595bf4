// Package api serves contour generation and survey management over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/db"
	"github.com/banshee-data/isobath/internal/httputil"
	"github.com/banshee-data/isobath/internal/monitoring"
	"github.com/banshee-data/isobath/internal/survey"
	"github.com/banshee-data/isobath/internal/timeutil"
	"github.com/banshee-data/isobath/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Catalog manages surveys and their sampling points. The SQLite store
// implements it; the PostGIS store does not, since that database is owned
// by the GIS application.
type Catalog interface {
	CreateSurvey(ctx context.Context, s *db.Survey) error
	GetSurvey(ctx context.Context, id string) (*db.Survey, error)
	ListSurveys(ctx context.Context) ([]db.Survey, error)
	DeleteSurvey(ctx context.Context, id string) error
	InsertSamples(ctx context.Context, surveyID string, points []db.SamplingPoint) (int, error)
	ListSamples(ctx context.Context, surveyID string) ([]db.SamplingPoint, error)
}

// Config wires a Server.
type Config struct {
	Service  *survey.Service
	Samples  survey.SampleSource
	Contours survey.ContourStore
	// Catalog is optional. Without it the /api/surveys listing and upload
	// routes answer 501.
	Catalog Catalog
	// Backend names the store for /api/status.
	Backend string
}

type Server struct {
	svc      *survey.Service
	samples  survey.SampleSource
	contours survey.ContourStore
	catalog  Catalog
	backend  string
	clock    timeutil.Clock
	started  time.Time
}

func NewServer(cfg Config) *Server {
	return &Server{
		svc:      cfg.Service,
		samples:  cfg.Samples,
		contours: cfg.Contours,
		catalog:  cfg.Catalog,
		backend:  cfg.Backend,
		clock:    timeutil.RealClock{},
		started:  time.Now(),
	}
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

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/contours/preview", s.handlePreview)
	mux.HandleFunc("/api/contours/generate", s.handleGenerate)
	mux.HandleFunc("/api/contours/regenerate-all", s.handleRegenerateAll)
	mux.HandleFunc("/api/surveys", s.handleSurveys)
	mux.HandleFunc("/api/surveys/", s.handleSurvey)
	return mux
}

// statusFor maps an error to its HTTP status. Bad input is the caller's
// problem; everything else is ours.
func statusFor(err error) int {
	switch {
	case bathy.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, survey.ErrNoSamples), errors.Is(err, db.ErrSurveyNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error's mapped status. Server-side failures
// are logged; their text is still returned so the GIS client can show it.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		monitoring.Logf("api: %v", err)
	}
	httputil.WriteJSONError(w, status, err.Error())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"version":        version.String(),
		"backend":        s.backend,
		"catalog":        s.catalog != nil,
		"uptime_seconds": int64(s.clock.Since(s.started).Seconds()),
	})
}
