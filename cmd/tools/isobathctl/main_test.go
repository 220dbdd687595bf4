package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/isobath/internal/api"
	"github.com/banshee-data/isobath/internal/fsutil"
	"github.com/banshee-data/isobath/internal/httputil"
	"github.com/banshee-data/isobath/internal/testutil"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func withMockClient(t *testing.T, mock *httputil.MockHTTPClient) {
	t.Helper()
	orig := newClient
	newClient = func(server string) *api.Client { return api.NewClient(server, mock) }
	t.Cleanup(func() { newClient = orig })
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "isobath")
}

func TestGenerate_Files(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "survey.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testutil.CSV(testutil.SlopeSamples())), 0o600))

	outPath := filepath.Join(dir, "contours.geojson")
	pngPath := filepath.Join(dir, "contours.png")
	htmlPath := filepath.Join(dir, "contours.html")
	_, stderr, err := execute(t, "", "generate", "--csv", csvPath, "-o", outPath, "--png", pngPath, "--html", htmlPath, "--interval", "2")
	require.NoError(t, err)
	assert.Contains(t, stderr, "variable levels")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var fc featureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 4)

	png, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
}

func TestGenerate_MemoryFiles(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	mem.WriteFile("in/survey.csv", []byte(testutil.CSV(testutil.SlopeSamples())))
	orig := files
	files = mem
	t.Cleanup(func() { files = orig })

	_, _, err := execute(t, "", "generate", "--csv", "in/survey.csv", "-o", "out/contours.geojson", "--png", "out/contours.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"in/survey.csv", "out/contours.geojson", "out/contours.png"}, mem.Names())

	data, err := mem.ReadFile("out/contours.geojson")
	require.NoError(t, err)
	var fc featureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.NotEmpty(t, fc.Features)

	_, _, err = execute(t, "", "generate", "--csv", "in/missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")
}

func TestGenerate_StdinForcedLevel(t *testing.T) {
	out, _, err := execute(t, testutil.CSV(testutil.SlopeSamples()), "generate", "--csv", "-", "--levels", "-5")
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal([]byte(out), &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, -5.0, fc.Features[0].Properties["depth"])
}

func TestGenerate_Fallback(t *testing.T) {
	out, stderr, err := execute(t, testutil.CSV(testutil.FlatSamples(6, -4.2)), "generate", "--csv", "-")
	require.NoError(t, err)
	assert.Contains(t, stderr, "fallback")

	var fc featureCollection
	require.NoError(t, json.Unmarshal([]byte(out), &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, true, fc.Features[0].Properties["fallback"])
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"missing csv flag", "", []string{"generate"}, `required flag(s) "csv" not set`},
		{"bad delimiter", "", []string{"generate", "--csv", "-", "--delimiter", ";;"}, "delimiter"},
		{"missing file", "", []string{"generate", "--csv", "/nonexistent/survey.csv"}, "no such file"},
		{"too few samples", "x,y,depth\n1,1,-1\n", []string{"generate", "--csv", "-"}, "insufficient samples"},
		{"bad coordinate", "x,y,depth\nabc,1,-1\n", []string{"generate", "--csv", "-"}, "invalid coordinate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegenerate(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK,
		`{"success":true,"survey_id":"s1","run_id":"r1","message":"contours generated (simple fallback)","inserted":1,"deleted":3,"warning":"approximate"}`)
	withMockClient(t, mock)

	out, stderr, err := execute(t, "", "regenerate", "--server", "http://isobath.test", "--survey", "s1", "--grid", "120")
	require.NoError(t, err)
	assert.Contains(t, out, "s1: contours generated (simple fallback) (run r1, 1 lines, 3 replaced)")
	assert.Contains(t, stderr, "warning: approximate")

	require.Equal(t, 1, mock.RequestCount())
	assert.Equal(t, "http://isobath.test/api/contours/generate", mock.Requests[0].URL.String())
	assert.JSONEq(t, `{"survey_id":"s1","grid_resolution":120}`, mock.Bodies[0])
}

func TestRegenerate_ServerError(t *testing.T) {
	withMockClient(t, httputil.NewMockHTTPClient().
		AddResponse(http.StatusNotFound, `{"error":"no sampling points for survey s2"}`))

	_, _, err := execute(t, "", "regenerate", "--survey", "s2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, _, err = execute(t, "", "regenerate")
	assert.ErrorContains(t, err, `required flag(s) "survey" not set`)
}

func TestStatus(t *testing.T) {
	withMockClient(t, httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"backend":"sqlite","catalog":true}`))

	out, _, err := execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"backend": "sqlite"`)
}

func TestDefaultServer(t *testing.T) {
	t.Setenv(envServer, "")
	assert.Equal(t, "http://localhost:8080", defaultServer())
	t.Setenv(envServer, "http://remote:9000")
	assert.Equal(t, "http://remote:9000", defaultServer())
}
