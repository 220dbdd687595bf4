package api

import (
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/httputil"
	"github.com/banshee-data/isobath/internal/survey"
)

// engineOverrides are the per-request engine settings. Zero values keep
// the configured defaults.
type engineOverrides struct {
	Interval       float64   `json:"interval,omitempty"`
	GridResolution int       `json:"grid_resolution,omitempty"`
	Levels         []float64 `json:"levels,omitempty"`
}

func (s *Server) options(o engineOverrides) bathy.Options {
	opts := s.svc.Options(o.Interval, o.GridResolution)
	opts.Levels = o.Levels
	return opts
}

type previewRequest struct {
	engineOverrides
	Samples []bathy.RawSample `json:"samples"`
}

type previewResponse struct {
	Success      bool                       `json:"success"`
	Contours     *geojson.FeatureCollection `json:"contours"`
	Levels       bathy.LevelSet             `json:"levels"`
	UsedFallback bool                       `json:"used_fallback"`
	PointCount   int                        `json:"point_count"`
	Discarded    int                        `json:"discarded"`
	Params       bathy.Params               `json:"parameters"`
	Warning      string                     `json:"warning,omitempty"`
}

// handlePreview contours posted samples without storing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req previewRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res, err := s.svc.Preview(req.Samples, s.options(req.engineOverrides))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := previewResponse{
		Success:      true,
		Contours:     res.FeatureCollection(),
		Levels:       res.Levels,
		UsedFallback: res.UsedFallback,
		PointCount:   res.PointCount,
		Discarded:    res.Discarded,
		Params:       res.Params,
	}
	if res.UsedFallback {
		resp.Warning = survey.WarnFallback
	}
	httputil.WriteJSONOK(w, resp)
}

type generateRequest struct {
	engineOverrides
	SurveyID string `json:"survey_id"`
}

// handleGenerate regenerates and stores the contours of one survey.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req generateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.SurveyID == "" {
		httputil.BadRequest(w, "survey_id is required")
		return
	}

	rep, err := s.svc.Regenerate(r.Context(), req.SurveyID, s.options(req.engineOverrides))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, rep)
}

type regenerateAllRequest struct {
	engineOverrides
	SurveyIDs []string `json:"survey_ids"`
}

type regenerateAllResponse struct {
	Results   []survey.BatchResult `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

// handleRegenerateAll regenerates the listed surveys, or every catalogued
// survey when the list is empty.
func (s *Server) handleRegenerateAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req regenerateAllRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	ids := req.SurveyIDs
	if len(ids) == 0 {
		if s.catalog == nil {
			httputil.BadRequest(w, "survey_ids is required without a survey catalog")
			return
		}
		surveys, err := s.catalog.ListSurveys(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		for _, sv := range surveys {
			ids = append(ids, sv.ID)
		}
	}

	results, err := s.svc.RegenerateAll(r.Context(), ids, s.options(req.engineOverrides))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := regenerateAllResponse{Results: results}
	for _, res := range results {
		if res.Err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	httputil.WriteJSONOK(w, resp)
}
