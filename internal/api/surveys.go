package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/csvimport"
	"github.com/banshee-data/isobath/internal/db"
	"github.com/banshee-data/isobath/internal/httputil"
	"github.com/banshee-data/isobath/internal/render"
	"github.com/banshee-data/isobath/internal/security"
	"github.com/banshee-data/isobath/internal/survey"
)

func (s *Server) requireCatalog(w http.ResponseWriter) bool {
	if s.catalog == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "survey catalog not available with the "+s.backend+" backend")
		return false
	}
	return true
}

type createSurveyRequest struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// handleSurveys lists (GET) or creates (POST) surveys.
func (s *Server) handleSurveys(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		surveys, err := s.catalog.ListSurveys(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if surveys == nil {
			surveys = []db.Survey{}
		}
		httputil.WriteJSONOK(w, surveys)
	case http.MethodPost:
		var req createSurveyRequest
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httputil.BadRequest(w, "name is required")
			return
		}
		sv := &db.Survey{ID: req.ID, Name: req.Name, Description: req.Description}
		if err := s.catalog.CreateSurvey(r.Context(), sv); err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, sv)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleSurvey routes /api/surveys/{id}[/samples|/contours|/contours.png|/contours.html].
func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/surveys/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		httputil.NotFound(w, "survey id is required")
		return
	}

	switch sub {
	case "":
		s.handleSurveyItem(w, r, id)
	case "samples":
		s.handleSamples(w, r, id)
	case "contours":
		s.handleStoredContours(w, r, id)
	case "contours.png", "contours.html":
		s.handleContourChart(w, r, id, strings.TrimPrefix(sub, "contours."))
	default:
		httputil.NotFound(w, "unknown survey resource: "+sub)
	}
}

func (s *Server) handleSurveyItem(w http.ResponseWriter, r *http.Request, id string) {
	if !s.requireCatalog(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		sv, err := s.catalog.GetSurvey(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, sv)
	case http.MethodDelete:
		if err := s.catalog.DeleteSurvey(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

type uploadResponse struct {
	Inserted int            `json:"inserted"`
	Report   *survey.Report `json:"report,omitempty"`
}

// handleSamples lists stored points (GET) or imports an echosounder CSV
// body (POST). Query parameters: delimiter (one character, or "tab"),
// header=false for headerless x,y,depth files, regenerate=true to rebuild
// the contours after import.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request, id string) {
	if !s.requireCatalog(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		points, err := s.catalog.ListSamples(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if points == nil {
			points = []db.SamplingPoint{}
		}
		httputil.WriteJSONOK(w, points)
	case http.MethodPost:
		if _, err := s.catalog.GetSurvey(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		opts, err := csvOptions(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		body := http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)
		points, err := readPoints(csvimport.NewReader(body, opts...))
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if len(points) == 0 {
			httputil.BadRequest(w, "no sampling points in body")
			return
		}
		n, err := s.catalog.InsertSamples(r.Context(), id, points)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := uploadResponse{Inserted: n}
		if r.URL.Query().Get("regenerate") == "true" {
			rep, err := s.svc.Regenerate(r.Context(), id, s.svc.Options(0, 0))
			if err != nil {
				writeError(w, err)
				return
			}
			resp.Report = rep
		}
		httputil.WriteJSON(w, http.StatusCreated, resp)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func csvOptions(r *http.Request) ([]csvimport.Option, error) {
	var opts []csvimport.Option
	q := r.URL.Query()
	switch d := q.Get("delimiter"); {
	case d == "":
	case d == "tab":
		opts = append(opts, csvimport.WithComma('\t'))
	case utf8.RuneCountInString(d) == 1:
		c, _ := utf8.DecodeRuneInString(d)
		opts = append(opts, csvimport.WithComma(c))
	default:
		return nil, fmt.Errorf("delimiter must be a single character or \"tab\", got %q", d)
	}
	if q.Get("header") == "false" {
		opts = append(opts, csvimport.WithHeader(false))
	}
	return opts, nil
}

// readPoints types each CSV row. Bad coordinates reject the upload; an
// unreadable depth is stored as NULL.
func readPoints(rd *csvimport.Reader) ([]db.SamplingPoint, error) {
	var points []db.SamplingPoint
	for row, err := range rd.Rows() {
		if err != nil {
			return nil, err
		}
		parsed, err := bathy.ParseSamples([]bathy.RawSample{row.Sample})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.Line, err)
		}
		p := db.SamplingPoint{X: parsed[0].X, Y: parsed[0].Y}
		if z := parsed[0].Z; !math.IsNaN(z) && !math.IsInf(z, 0) {
			p.Depth = &z
		}
		if len(row.Metadata) > 0 {
			p.Metadata = make(map[string]any, len(row.Metadata))
			for k, v := range row.Metadata {
				p.Metadata[k] = v
			}
		}
		points = append(points, p)
	}
	return points, nil
}

// handleStoredContours returns the stored contour lines as GeoJSON.
func (s *Server) handleStoredContours(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	lines, err := s.contours.ListContours(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", security.ContentDisposition("inline", "contours-"+id+".geojson"))
	httputil.WriteGeoJSON(w, survey.FeatureCollection(lines))
}

// handleContourChart draws the stored contours over the survey's samples.
func (s *Server) handleContourChart(w http.ResponseWriter, r *http.Request, id, format string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	lines, err := s.contours.ListContours(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(lines) == 0 {
		httputil.NotFound(w, "no contours stored for survey "+id)
		return
	}
	set := render.FromStored("Survey "+id, lines)
	if raw, err := s.samples.FetchSamplesForSurvey(r.Context(), id); err == nil {
		if parsed, err := bathy.ParseSamples(raw); err == nil {
			if ss, err := bathy.NewSampleSet(parsed); err == nil {
				set.Samples = ss.Samples()
			}
		}
	}

	var buf bytes.Buffer
	contentType := "image/png"
	if format == "html" {
		contentType = "text/html; charset=utf-8"
		err = render.HTML(&buf, set)
	} else {
		err = render.PNG(&buf, set, 0, 0)
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render %s: %v", format, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", security.ContentDisposition("inline", "contours-"+id+"."+format))
	_, _ = w.Write(buf.Bytes())
}
