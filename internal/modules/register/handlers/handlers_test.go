package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() chi.Router {
	r := chi.NewRouter()
	NewHandler(zerolog.Nop()).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type applyResponse struct {
	Data struct {
		Steps []StepResult `json:"steps"`
		SRV   []int        `json:"srv"`
		Label string       `json:"srv_label"`
		Done  bool         `json:"done"`
		Count int          `json:"num_steps"`
		Amps  []Amplitude  `json:"amplitudes"`
		Norm  float64      `json:"norm"`
	} `json:"data"`
}

func TestApplyEmptySequence(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(t, router, http.MethodPost, "/register/apply", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp applyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.Steps)
	assert.Equal(t, []int{1, 1, 1}, resp.Data.SRV)
	assert.Equal(t, "(1,1,1)", resp.Data.Label)
	assert.False(t, resp.Data.Done)
	require.Len(t, resp.Data.Amps, 27)
	assert.Equal(t, 1.0, resp.Data.Amps[0].Real)
	assert.InDelta(t, 1.0, resp.Data.Norm, 1e-12)
}

func TestApplyRotationKeepsProductState(t *testing.T) {
	router := newTestRouter()

	body := `{"num_ions": 2, "dim": 3, "goal": [[3, 3]], "actions": [0]}`
	rec := doRequest(t, router, http.MethodPost, "/register/apply", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp applyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Steps, 1)
	assert.Equal(t, []int{1, 1}, resp.Data.Steps[0].SRV)
	assert.Equal(t, 0.0, resp.Data.Steps[0].Reward)
	assert.Contains(t, resp.Data.Steps[0].Gate, "R0")
	assert.Equal(t, 1, resp.Data.Count)
	assert.InDelta(t, 1.0, resp.Data.Norm, 1e-9)
}

func TestApplyMSGateEntangles(t *testing.T) {
	router := newTestRouter()

	// Default catalog: actions 0-8 are rotations, 9 is the MS gate.
	body := `{"actions": [9]}`
	rec := doRequest(t, router, http.MethodPost, "/register/apply", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp applyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Steps, 1)
	assert.Contains(t, resp.Data.Steps[0].Gate, "MS")
	for _, rank := range resp.Data.Steps[0].SRV {
		assert.GreaterOrEqual(t, rank, 2)
	}
}

func TestApplyRejectsInvalidAction(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(t, router, http.MethodPost, "/register/apply", `{"actions": [99]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyRejectsInvalidConfig(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(t, router, http.MethodPost, "/register/apply", `{"dim": 4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyRejectsInvalidBody(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(t, router, http.MethodPost, "/register/apply", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type actionsResponse struct {
	Data struct {
		Actions []ActionEntry `json:"actions"`
		Count   int           `json:"count"`
		NumIons int           `json:"num_ions"`
		Dim     int           `json:"dim"`
	} `json:"data"`
}

func TestListActionsDefaults(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(t, router, http.MethodGet, "/register/actions", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp actionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// 3 ions × 1 angle × 3 phases + 1 MS phase.
	assert.Equal(t, 10, resp.Data.Count)
	require.Len(t, resp.Data.Actions, 10)
	assert.Equal(t, "rotation", resp.Data.Actions[0].Kind)
	assert.Equal(t, 0, resp.Data.Actions[0].Ion)
	assert.Equal(t, "ms", resp.Data.Actions[9].Kind)
	assert.Equal(t, -1, resp.Data.Actions[9].Ion)
}

func TestListActionsWithOverrides(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(t, router, http.MethodGet,
		"/register/actions?num_ions=2&dim=5&pulse_phases=0,1.5708&ms_phases=-1.5708,-0.7854", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp actionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// 2 ions × 1 angle × 2 phases + 2 MS phases.
	assert.Equal(t, 6, resp.Data.Count)
	assert.Equal(t, 2, resp.Data.NumIons)
	assert.Equal(t, 5, resp.Data.Dim)
}

func TestListActionsRejectsBadParams(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(t, router, http.MethodGet, "/register/actions?dim=4", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/register/actions?num_ions=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/register/actions?pulse_angles=x,y", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
