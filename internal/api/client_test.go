package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/isobath/internal/httputil"
	"github.com/banshee-data/isobath/internal/testutil"
)

func TestClientRegenerate(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"success":true,"survey_id":"s1","inserted":4,"message":"contours generated"}`)
	c := NewClient("http://isobath.local/", mock)

	rep, err := c.Regenerate(context.Background(), "s1", 0.5, 0)
	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Equal(t, 4, rep.Inserted)

	require.Equal(t, 1, mock.RequestCount())
	req := mock.Requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "http://isobath.local/api/contours/generate", req.URL.String())
	assert.JSONEq(t, `{"survey_id":"s1","interval":0.5}`, mock.Bodies[0])
}

func TestClientErrors(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusNotFound, `{"error":"no sampling points for survey s9"}`).
		AddResponse(http.StatusBadGateway, "upstream down").
		AddErrorResponse(errors.New("connection refused"))
	c := NewClient("http://isobath.local", mock)

	_, err := c.Regenerate(context.Background(), "s9", 0, 0)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "no sampling points for survey s9", apiErr.Message)

	_, err = c.Status(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)

	_, err = c.Status(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestClientAgainstServer(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()
	sv := createSurvey(t, mux, "remote")
	w := do(t, mux, http.MethodPost, "/api/surveys/"+sv.ID+"/samples", testutil.CSV(testutil.SlopeSamples()))
	testutil.AssertStatusCode(t, w.Code, http.StatusCreated)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL, nil)
	rep, err := c.Regenerate(context.Background(), sv.ID, 0, 0)
	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Equal(t, sv.ID, rep.SurveyID)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status["backend"])
}
