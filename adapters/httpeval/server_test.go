package httpeval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bondfuzz/domain/canon"
	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/testkit"
	"bondfuzz/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestServerRoundTripThroughClient(t *testing.T) {
	server := NewServer(nil, nil, testkit.BestOption(), testkit.FirstOption())
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	s := testkit.TwoOptions()

	best, err := NewClient("best", srv.URL, 0).Evaluate(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, canon.NormalizeLabel("Treat immediately"), best.Selection)

	first, err := NewClient("first", srv.URL+"/evaluators/first_option", 0).Evaluate(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Selection)
}

func TestServerRejectsInvalidScenario(t *testing.T) {
	server := NewServer(nil, nil, testkit.FirstOption())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, EvaluatePath, strings.NewReader(`{"id":"empty","options":[]}`))
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, EvaluatePath, strings.NewReader(`{`))
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServerPropagatesFailureKinds(t *testing.T) {
	transient := ports.EvaluatorFunc{ID: "busy", Fn: func(context.Context, scenario.Scenario) (scenario.EvaluationResult, error) {
		return scenario.EvaluationResult{}, core.NewExternalError("busy", true, errors.New("overloaded"))
	}}
	srv := httptest.NewServer(NewServer(nil, nil, transient, testkit.Failing()).Handler())
	defer srv.Close()

	_, err := NewClient("busy", srv.URL, 0).Evaluate(context.Background(), testkit.TwoOptions())
	assert.True(t, core.IsTransient(err))

	_, err = NewClient("failing", srv.URL+"/evaluators/failing", 0).Evaluate(context.Background(), testkit.TwoOptions())
	require.Error(t, err)
	assert.False(t, core.IsTransient(err))
}

func TestServerHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "bondfuzz_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	server := NewServer(nil, reg, testkit.FirstOption())

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bondfuzz_test_total 1")

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/evaluators", nil))
	var body struct {
		Evaluators []string `json:"evaluators"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"first_option"}, body.Evaluators)
}
