package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"custanalytics/ml"
	"custanalytics/pipeline"
)

// constant predicts the same value for every row.
type constant float64

func (c constant) Predict(ctx context.Context, frame ml.Frame) ([]float64, error) {
	outputs := make([]float64, frame.Len())
	for i := range outputs {
		outputs[i] = float64(c)
	}
	return outputs, nil
}

type failing struct{ err error }

func (f failing) Predict(ctx context.Context, frame ml.Frame) ([]float64, error) {
	return nil, f.err
}

type panicking struct{}

func (panicking) Predict(ctx context.Context, frame ml.Frame) ([]float64, error) {
	panic("boom")
}

func newTestAPI(t *testing.T, predictors map[ml.Task]ml.Predictor) *API {
	t.Helper()
	all := map[ml.Task]ml.Predictor{
		ml.TaskRevenue:  constant(123.456),
		ml.TaskPurchase: constant(1),
		ml.TaskSegment:  constant(2),
	}
	for task, predictor := range predictors {
		all[task] = predictor
	}
	registry, err := ml.NewRegistry(all)
	require.NoError(t, err)

	schema := ml.DefaultSchema()
	api, err := NewAPI(Options{
		Registry:   registry,
		Normalizer: pipeline.NewNormalizer(schema, pipeline.NewValidator(schema)),
		Results:    NewResultStore(8, time.Minute),
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return api
}

func newTestServer(t *testing.T, api *API) *httptest.Server {
	t.Helper()
	config := DefaultServerConfig()
	config.MaxUploadBytes = 1 << 20
	server := httptest.NewServer(Handler(config, api, zap.NewNop()))
	t.Cleanup(server.Close)
	return server
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestNewAPIRequiresRegistry(t *testing.T) {
	_, err := NewAPI(Options{})
	assert.Error(t, err)
}

func TestHealthHandler(t *testing.T) {
	server := newTestServer(t, newTestAPI(t, nil))

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body struct {
		Status string            `json:"status"`
		Models map[string]string `json:"models"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"revenue": "custom", "purchase": "custom", "segment": "custom"}, body.Models)
}

func TestSchemaHandler(t *testing.T) {
	server := newTestServer(t, newTestAPI(t, nil))

	resp, err := http.Get(server.URL + "/api/schema")
	require.NoError(t, err)

	var body struct {
		Numeric     []string          `json:"numeric"`
		Categorical []string          `json:"categorical"`
		Outputs     map[string]string `json:"outputs"`
	}
	decodeJSON(t, resp, &body)
	assert.Equal(t, ml.DefaultSchema().Numeric, body.Numeric)
	assert.Equal(t, ml.DefaultSchema().Categorical, body.Categorical)
	assert.Equal(t, "Cluster", body.Outputs["segment"])
}

func TestMetricsHandlerCountsPredictions(t *testing.T) {
	server := newTestServer(t, newTestAPI(t, nil))

	for i := 0; i < 2; i++ {
		resp, err := http.Post(server.URL+"/api/predict/revenue", "application/json", strings.NewReader(`{"fields":{}}`))
		require.NoError(t, err)
		resp.Body.Close()
	}
	resp, err := http.Post(server.URL+"/api/predict/revenue", "application/json", strings.NewReader(`{"fields":{"page":"x"}}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/metrics")
	require.NoError(t, err)
	var body struct {
		Predictions struct {
			Tasks map[string]struct {
				Requests int64            `json:"requests"`
				Rows     int64            `json:"rows"`
				Failures map[string]int64 `json:"failures"`
			} `json:"tasks"`
		} `json:"predictions"`
	}
	decodeJSON(t, resp, &body)
	revenue := body.Predictions.Tasks["revenue"]
	assert.Equal(t, int64(3), revenue.Requests)
	assert.Equal(t, int64(2), revenue.Rows)
	assert.Equal(t, int64(1), revenue.Failures["malformed_input"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", ml.ErrMalformedInput), http.StatusBadRequest},
		{fmt.Errorf("%w: bad", ml.ErrInferenceFailure), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: x", ml.ErrUnknownTask), http.StatusNotFound},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	server := newTestServer(t, newTestAPI(t, map[ml.Task]ml.Predictor{ml.TaskSegment: panicking{}}))

	resp, err := http.Post(server.URL+"/api/predict/segment", "application/json", strings.NewReader(`{"fields":{}}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body errorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "internal", body.Kind)
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(t, newTestAPI(t, nil))

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/predict/revenue", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://example.test", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDeadlineMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := DeadlineMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestIndexPage(t *testing.T) {
	server := newTestServer(t, newTestAPI(t, nil))

	resp, err := http.Get(server.URL + "/?tab=segment")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)
	assert.Contains(t, page, "Customer Analytics App")
	assert.Contains(t, page, `action="/predict/segment"`)
	assert.Contains(t, page, `name="page2_clothing_model" value="Unknown"`)
}

func TestUnknownRoute(t *testing.T) {
	server := newTestServer(t, newTestAPI(t, nil))

	resp, err := http.Get(server.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
