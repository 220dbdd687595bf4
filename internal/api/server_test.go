package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/db"
	"github.com/banshee-data/isobath/internal/monitoring"
	"github.com/banshee-data/isobath/internal/survey"
	"github.com/banshee-data/isobath/internal/testutil"
	"github.com/banshee-data/isobath/internal/timeutil"
)

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.Logf = orig })

	dbInst, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbInst.Close() })

	server := NewServer(Config{
		Service:  survey.NewService(dbInst, dbInst, nil),
		Samples:  dbInst,
		Contours: dbInst,
		Catalog:  dbInst,
		Backend:  "sqlite",
	})
	return server, dbInst
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func samplesJSON(t *testing.T, samples []bathy.Sample) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"samples": testutil.Raw(samples)})
	require.NoError(t, err)
	return string(b)
}

func createSurvey(t *testing.T, h http.Handler, name string) db.Survey {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/surveys", fmt.Sprintf(`{"name":%q}`, name))
	testutil.AssertStatusCode(t, w.Code, http.StatusCreated)
	var sv db.Survey
	decode(t, w, &sv)
	return sv
}

func TestStatus(t *testing.T) {
	server, _ := setupTestServer(t)
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	server.clock = clock
	server.started = clock.Now()
	clock.Advance(90 * time.Second)
	mux := server.ServeMux()

	w := do(t, mux, http.MethodGet, "/api/status", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var got map[string]any
	decode(t, w, &got)
	assert.Equal(t, "sqlite", got["backend"])
	assert.Equal(t, true, got["catalog"])
	assert.Contains(t, got["version"], "isobath")
	assert.Equal(t, 90.0, got["uptime_seconds"])

	w = do(t, mux, http.MethodPost, "/api/status", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestPreview(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	t.Run("variable", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/api/contours/preview", samplesJSON(t, testutil.SlopeSamples()))
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)

		var resp struct {
			Success      bool `json:"success"`
			UsedFallback bool `json:"used_fallback"`
			PointCount   int  `json:"point_count"`
			Contours     struct {
				Type     string            `json:"type"`
				Features []json.RawMessage `json:"features"`
			} `json:"contours"`
			Levels bathy.LevelSet `json:"levels"`
		}
		decode(t, w, &resp)
		assert.True(t, resp.Success)
		assert.False(t, resp.UsedFallback)
		assert.Equal(t, 25, resp.PointCount)
		assert.Equal(t, "FeatureCollection", resp.Contours.Type)
		assert.Len(t, resp.Contours.Features, len(resp.Levels.Levels))
		assert.Equal(t, bathy.ModeVariable, resp.Levels.Mode)
	})

	t.Run("fallback warns", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/api/contours/preview", samplesJSON(t, testutil.FlatSamples(6, -4.2)))
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)
		var resp previewResponse
		decode(t, w, &resp)
		assert.True(t, resp.UsedFallback)
		assert.Equal(t, survey.WarnFallback, resp.Warning)
		assert.Equal(t, bathy.TypeFallback, resp.Params.Type)
	})

	t.Run("overrides", func(t *testing.T) {
		body := `{"interval":2,"grid_resolution":60,` + strings.TrimPrefix(samplesJSON(t, testutil.SlopeSamples()), "{")
		w := do(t, mux, http.MethodPost, "/api/contours/preview", body)
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)
		var resp previewResponse
		decode(t, w, &resp)
		assert.Equal(t, 2.0, resp.Params.Interval)
		assert.Equal(t, 60, resp.Params.GridResolution)
	})

	tests := []struct {
		name   string
		method string
		body   string
		status int
		errMsg string
	}{
		{"empty samples", http.MethodPost, `{"samples":[]}`, http.StatusBadRequest, "insufficient samples"},
		{"no depths", http.MethodPost, `{"samples":[{"x":1,"y":1},{"x":2,"y":1},{"x":1,"y":2}]}`, http.StatusBadRequest, "no finite depth"},
		{"bad coordinate", http.MethodPost, `{"samples":[{"x":"abc","y":1,"depth":-1}]}`, http.StatusBadRequest, "invalid coordinate"},
		{"unknown field", http.MethodPost, `{"points":[]}`, http.StatusBadRequest, "invalid JSON body"},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, "method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, tt.method, "/api/contours/preview", tt.body)
			testutil.AssertStatusCode(t, w.Code, tt.status)
			assert.Contains(t, w.Body.String(), tt.errMsg)
		})
	}
}

func TestSurveyLifecycle(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	sv := createSurvey(t, mux, "Musi river")
	require.NotEmpty(t, sv.ID)

	w := do(t, mux, http.MethodGet, "/api/surveys", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var list []db.Survey
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Musi river", list[0].Name)

	w = do(t, mux, http.MethodGet, "/api/surveys/"+sv.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	// Upload and regenerate in one request.
	w = do(t, mux, http.MethodPost, "/api/surveys/"+sv.ID+"/samples?regenerate=true", testutil.CSV(testutil.SlopeSamples()))
	testutil.AssertStatusCode(t, w.Code, http.StatusCreated)
	var up uploadResponse
	decode(t, w, &up)
	assert.Equal(t, 25, up.Inserted)
	require.NotNil(t, up.Report)
	assert.True(t, up.Report.Success)
	assert.Positive(t, up.Report.Inserted)

	w = do(t, mux, http.MethodGet, "/api/surveys/"+sv.ID+"/samples", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var points []db.SamplingPoint
	decode(t, w, &points)
	assert.Len(t, points, 25)

	w = do(t, mux, http.MethodGet, "/api/surveys/"+sv.ID+"/contours", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	var fc struct {
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	decode(t, w, &fc)
	require.Len(t, fc.Features, up.Report.Inserted)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.Type)

	w = do(t, mux, http.MethodGet, "/api/surveys/"+sv.ID+"/contours.png", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="contours-`+sv.ID+`.png"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = do(t, mux, http.MethodGet, "/api/surveys/"+sv.ID+"/contours.html", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), "echarts")

	w = do(t, mux, http.MethodDelete, "/api/surveys/"+sv.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNoContent)
	w = do(t, mux, http.MethodGet, "/api/surveys/"+sv.ID, "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestSurveyErrors(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()
	sv := createSurvey(t, mux, "empty")

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"missing name", http.MethodPost, "/api/surveys", `{"name":" "}`, http.StatusBadRequest},
		{"unknown survey", http.MethodGet, "/api/surveys/nope", "", http.StatusNotFound},
		{"upload to unknown survey", http.MethodPost, "/api/surveys/nope/samples", "x,y,depth\n1,1,-1\n", http.StatusNotFound},
		{"bad coordinate row", http.MethodPost, "/api/surveys/" + sv.ID + "/samples", "x,y,depth\nabc,1,-1\n", http.StatusBadRequest},
		{"missing depth column", http.MethodPost, "/api/surveys/" + sv.ID + "/samples", "x,y\n1,1\n", http.StatusBadRequest},
		{"header only", http.MethodPost, "/api/surveys/" + sv.ID + "/samples", "x,y,depth\n", http.StatusBadRequest},
		{"bad delimiter", http.MethodPost, "/api/surveys/" + sv.ID + "/samples?delimiter=ab", "", http.StatusBadRequest},
		{"no stored contours chart", http.MethodGet, "/api/surveys/" + sv.ID + "/contours.png", "", http.StatusNotFound},
		{"unknown resource", http.MethodGet, "/api/surveys/" + sv.ID + "/nope", "", http.StatusNotFound},
		{"generate without samples", http.MethodPost, "/api/contours/generate", fmt.Sprintf(`{"survey_id":%q}`, sv.ID), http.StatusNotFound},
		{"generate without id", http.MethodPost, "/api/contours/generate", `{}`, http.StatusBadRequest},
		{"generate wrong method", http.MethodGet, "/api/contours/generate", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, tt.method, tt.target, tt.body)
			testutil.AssertStatusCode(t, w.Code, tt.status)
		})
	}
}

func TestUploadDelimiterAndHeader(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()
	sv := createSurvey(t, mux, "semicolon")

	body := "104.70;-2.98;-1.5\n104.71;-2.98;\n104.70;-2.97;-2.5\n"
	w := do(t, mux, http.MethodPost, "/api/surveys/"+sv.ID+"/samples?delimiter=%3B&header=false", body)
	testutil.AssertStatusCode(t, w.Code, http.StatusCreated)

	w = do(t, mux, http.MethodGet, "/api/surveys/"+sv.ID+"/samples", "")
	var points []db.SamplingPoint
	decode(t, w, &points)
	require.Len(t, points, 3)
	assert.Nil(t, points[1].Depth)
	require.NotNil(t, points[2].Depth)
	assert.Equal(t, -2.5, *points[2].Depth)
}

func TestGenerateAndRegenerateAll(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	full := createSurvey(t, mux, "full")
	empty := createSurvey(t, mux, "empty")
	w := do(t, mux, http.MethodPost, "/api/surveys/"+full.ID+"/samples", testutil.CSV(testutil.SlopeSamples()))
	testutil.AssertStatusCode(t, w.Code, http.StatusCreated)

	w = do(t, mux, http.MethodPost, "/api/contours/generate", fmt.Sprintf(`{"survey_id":%q,"interval":2}`, full.ID))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var rep survey.Report
	decode(t, w, &rep)
	assert.True(t, rep.Success)
	assert.Equal(t, 2.0, rep.Params.Interval)

	w = do(t, mux, http.MethodPost, "/api/contours/regenerate-all", `{}`)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var all regenerateAllResponse
	decode(t, w, &all)
	assert.Equal(t, 1, all.Succeeded)
	assert.Equal(t, 1, all.Failed)
	for _, r := range all.Results {
		if r.SurveyID == empty.ID {
			assert.Contains(t, r.Error, "no sampling points")
		} else {
			assert.NotNil(t, r.Report)
		}
	}
}

func TestServerWithoutCatalog(t *testing.T) {
	server, dbInst := setupTestServer(t)
	server.catalog = nil
	server.backend = "postgis"
	mux := server.ServeMux()

	w := do(t, mux, http.MethodGet, "/api/surveys", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotImplemented)
	assert.Contains(t, w.Body.String(), "postgis")

	w = do(t, mux, http.MethodPost, "/api/contours/regenerate-all", `{}`)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	// Contour reads do not need the catalog.
	sv := &db.Survey{Name: "direct"}
	require.NoError(t, dbInst.CreateSurvey(context.Background(), sv))
	w = do(t, mux, http.MethodGet, "/api/surveys/"+sv.ID+"/contours", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("survey s: %w", bathy.ErrInsufficientSamples), http.StatusBadRequest},
		{bathy.ErrInvalidCoordinate, http.StatusBadRequest},
		{fmt.Errorf("%w s", survey.ErrNoSamples), http.StatusNotFound},
		{db.ErrSurveyNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{bathy.ErrContourGenerationFailed, http.StatusInternalServerError},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var logged []string
	orig := monitoring.Logf
	monitoring.SetLogger(func(format string, args ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, args...))
	})
	t.Cleanup(func() { monitoring.Logf = orig })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := do(t, h, http.MethodGet, "/api/status?x=1", "")
	testutil.AssertStatusCode(t, w.Code, http.StatusTeapot)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "418")
	assert.Contains(t, logged[0], "/api/status?x=1")
}
