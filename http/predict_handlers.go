package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"custanalytics/ml"
	"custanalytics/pipeline"
	"custanalytics/present"
)

// predictRequest is a manual entry: one value per feature, by column name.
type predictRequest struct {
	Fields map[string]string `json:"fields"`
}

type predictionResponse struct {
	Task       ml.Task  `json:"task"`
	Prediction float64  `json:"prediction"`
	Label      string   `json:"label"`
	Message    string   `json:"message"`
	Defaulted  []string `json:"defaulted,omitempty"`
}

// predictEntry runs a single manually entered row through the task's model.
func (a *API) predictEntry(ctx context.Context, task ml.Task, fields map[string]string) (*predictionResponse, error) {
	start := time.Now()
	entry, err := a.normalizer.Manual(fields)
	if err != nil {
		a.metrics.RecordPrediction(task, 0, time.Since(start), err)
		return nil, err
	}
	outputs, err := a.registry.Dispatch(ctx, task, entry.Table)
	a.metrics.RecordPrediction(task, 1, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if len(entry.Defaulted) > 0 {
		a.logger.Debug("manual entry used defaults",
			zap.String("task", string(task)),
			zap.Strings("fields", entry.Defaulted))
	}

	v := outputs[0]
	return &predictionResponse{
		Task:       task,
		Prediction: v,
		Label:      present.FormatOutput(task, v),
		Message:    present.Message(task, v),
		Defaulted:  entry.Defaulted,
	}, nil
}

// predictBatch reads an upload and returns it with the prediction column appended.
func (a *API) predictBatch(ctx context.Context, task ml.Task, upload []byte, charset string) (*pipeline.Table, error) {
	start := time.Now()
	table, err := a.normalizer.Batch(bytes.NewReader(upload), charset)
	if err != nil {
		a.metrics.RecordPrediction(task, 0, time.Since(start), err)
		return nil, err
	}
	outputs, err := a.registry.Dispatch(ctx, task, table)
	a.metrics.RecordPrediction(task, table.Len(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	a.logger.Info("batch prediction",
		zap.String("task", string(task)),
		zap.Int("rows", table.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return present.Augment(task, table, outputs)
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	task, err := taskFromPath(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isTooLarge(err) {
			a.writeError(w, r, err)
			return
		}
		a.writeError(w, r, malformed("invalid json: %v", err))
		return
	}

	resp, err := a.predictEntry(r.Context(), task, req.Fields)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *API) handleBatchPredict(w http.ResponseWriter, r *http.Request) {
	task, err := taskFromPath(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	upload, charset, err := a.readUpload(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.predictBatch(r.Context(), task, upload, charset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeCSVAttachment(w, task, result, a.logger)
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	stored, ok := a.results.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "result not found or expired", http.StatusNotFound)
		return
	}
	writeCSVAttachment(w, stored.Task, stored.Table, a.logger)
}

func writeCSVAttachment(w http.ResponseWriter, task ml.Task, table *pipeline.Table, logger *zap.Logger) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": present.DownloadName(task),
	}))
	if err := present.WriteCSV(w, table); err != nil {
		logger.Error("write csv", zap.Error(err))
	}
}

// readUpload returns the uploaded CSV bytes from a multipart "file" field or the raw body,
// and the charset named by the "charset" query parameter or the content type.
func (a *API) readUpload(r *http.Request) ([]byte, string, error) {
	charset := r.URL.Query().Get("charset")
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(a.maxUpload); err != nil {
			if isTooLarge(err) {
				return nil, "", err
			}
			return nil, "", malformed("invalid upload: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, "", malformed("missing file: %v", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		if charset == "" {
			charset = r.FormValue("charset")
		}
		return data, charset, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	if charset == "" {
		charset = params["charset"]
	}
	return data, charset, nil
}

func isTooLarge(err error) bool {
	return statusFor(err) == http.StatusRequestEntityTooLarge
}
