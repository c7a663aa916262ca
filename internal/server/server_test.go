package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wchen/gpuharvest/internal/run"
)

type fakeController struct {
	launchErr error
	lastMode  run.Mode
	lastGPU   string
	launched  int
	state     run.State
	summary   *run.Summary
}

func (f *fakeController) Launch(_ context.Context, mode run.Mode, gpuName string) (uuid.UUID, error) {
	if f.launchErr != nil {
		return uuid.Nil, f.launchErr
	}
	f.launched++
	f.lastMode = mode
	f.lastGPU = gpuName
	return uuid.New(), nil
}

func (f *fakeController) Status() (run.State, *run.Summary) {
	return f.state, f.summary
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func doRequest(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestHandleIndex(t *testing.T) {
	s := New(0, &fakeController{state: run.StateIdle}, &fakePinger{})
	rec, payload := doRequest(t, s, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
}

func TestHandleHealth(t *testing.T) {
	s := New(0, &fakeController{}, &fakePinger{})
	rec, _ := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	s = New(0, &fakeController{}, &fakePinger{err: errors.New("connection refused")})
	rec, payload := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, payload["success"])
}

func TestHandleRunScraper_Modes(t *testing.T) {
	ctrl := &fakeController{}
	s := New(0, ctrl, &fakePinger{})

	rec, _ := doRequest(t, s, "/run-scraper")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, run.ModeDefault, ctrl.lastMode)

	rec, _ = doRequest(t, s, "/run-scraper?mode=full")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, run.ModeFull, ctrl.lastMode)

	rec, _ = doRequest(t, s, "/run-scraper?mode=incremental")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, run.ModeIncremental, ctrl.lastMode)
}

func TestHandleRunScraper_RejectsInvalidMode(t *testing.T) {
	ctrl := &fakeController{}
	s := New(0, ctrl, &fakePinger{})

	rec, payload := doRequest(t, s, "/run-scraper?mode=turbo")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, payload["success"])
	assert.Zero(t, ctrl.launched)

	// selected requires a GPU name, so it is not accepted on this endpoint.
	rec, _ = doRequest(t, s, "/run-scraper?mode=selected")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRunScraper_SingleFlightConflict(t *testing.T) {
	s := New(0, &fakeController{launchErr: run.ErrRunActive}, &fakePinger{})
	rec, payload := doRequest(t, s, "/run-scraper")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, payload["success"])
}

func TestHandleRunSelected(t *testing.T) {
	ctrl := &fakeController{}
	s := New(0, ctrl, &fakePinger{})

	rec, _ := doRequest(t, s, "/run-scraper-selected?gpu_name=GeForce+RTX+4090")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, run.ModeSelected, ctrl.lastMode)
	assert.Equal(t, "GeForce RTX 4090", ctrl.lastGPU)

	rec, _ = doRequest(t, s, "/run-scraper-selected")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, ctrl.launched)
}

func TestHandleStatus(t *testing.T) {
	summary := &run.Summary{Mode: run.ModeDefault, Success: true}
	s := New(0, &fakeController{state: run.StateCompleted, summary: summary}, &fakePinger{})

	rec, payload := doRequest(t, s, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(run.StateCompleted), payload["state"])
	assert.Equal(t, false, payload["is_running"])
	require.NotNil(t, payload["run"])
	runPayload := payload["run"].(map[string]any)
	assert.Equal(t, true, runPayload["success"])
}

func TestRunTriggersAreRateLimited(t *testing.T) {
	ctrl := &fakeController{}
	s := New(0, ctrl, &fakePinger{})

	limited := false
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/run-scraper", nil)
		req.RemoteAddr = "10.9.8.7:1234"
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "a burst of run triggers must eventually be limited")
}
