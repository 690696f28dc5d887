package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"custanalytics/ml"
	"custanalytics/monitoring"
	"custanalytics/pipeline"
)

// Options wires the handlers to the process-wide, read-only dependencies.
type Options struct {
	Registry       *ml.Registry
	Normalizer     *pipeline.Normalizer
	Results        *ResultStore
	Metrics        *monitoring.MetricsCollector
	Alerts         *monitoring.AlertSystem
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// API serves the prediction pages and endpoints.
type API struct {
	registry   *ml.Registry
	normalizer *pipeline.Normalizer
	results    *ResultStore
	metrics    *monitoring.MetricsCollector
	alerts     *monitoring.AlertSystem
	logger     *zap.Logger
	maxUpload  int64
	pages      *template.Template
	upgrader   websocket.Upgrader
}

func NewAPI(opts Options) (*API, error) {
	if opts.Registry == nil || opts.Normalizer == nil {
		return nil, errors.New("registry and normalizer are required")
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	api := &API{
		registry:   opts.Registry,
		normalizer: opts.Normalizer,
		results:    opts.Results,
		metrics:    opts.Metrics,
		alerts:     opts.Alerts,
		logger:     opts.Logger,
		maxUpload:  opts.MaxUploadBytes,
		pages:      pages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if api.results == nil {
		api.results = NewResultStore(128, 15*time.Minute)
	}
	if api.metrics == nil {
		api.metrics = monitoring.NewMetricsCollector()
	}
	if api.logger == nil {
		api.logger = zap.NewNop()
	}
	if api.maxUpload <= 0 {
		api.maxUpload = 32 << 20
	}
	return api, nil
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("POST /predict/{task}", a.handleFormPredict)
	mux.HandleFunc("POST /upload/{task}", a.handleFormUpload)
	mux.HandleFunc("GET /download/{id}", a.handleDownload)

	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/schema", a.handleSchema)
	mux.HandleFunc("GET /api/metrics", a.handleMetrics)
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("POST /api/predict/{task}", a.handlePredict)
	mux.HandleFunc("POST /api/predict/{task}/batch", a.handleBatchPredict)
	mux.HandleFunc("GET /api/ws/predict/{task}", a.handlePredictSocket)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	models := make(map[ml.Task]string, 3)
	for _, task := range ml.Tasks() {
		models[task] = a.registry.Kind(task)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"models": models,
	})
}

func (a *API) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema := a.normalizer.Schema()
	outputs := make(map[ml.Task]string, 3)
	for _, task := range ml.Tasks() {
		outputs[task] = task.OutputColumn()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"numeric":     schema.Numeric,
		"categorical": schema.Categorical,
		"defaults": map[string]interface{}{
			"numeric":     ml.DefaultNumeric,
			"categorical": ml.DefaultCategorical,
		},
		"outputs": outputs,
	})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	alerts := []monitoring.Alert{}
	if a.alerts != nil {
		alerts = a.alerts.Active()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions":    a.metrics.Snapshot(),
		"cached_results": a.results.Len(),
		"alerts":         alerts,
	})
}

// taskFromPath resolves the {task} path value.
func taskFromPath(r *http.Request) (ml.Task, error) {
	return ml.ParseTask(r.PathValue("task"))
}

// respondJSON encodes before writing the header so an unencodable payload
// becomes a 500 instead of an empty 200.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "encode response: " + err.Error(), Kind: "internal"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func errorBody(err error) errorResponse {
	kind := ml.ErrorKind(err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		kind = "too_large"
	}
	return errorResponse{Error: err.Error(), Kind: kind}
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ml.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrInferenceFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ml.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", fields...)
	} else {
		a.logger.Info("request rejected", fields...)
	}
	respondJSON(w, status, errorBody(err))
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ml.ErrMalformedInput, fmt.Sprintf(format, args...))
}
