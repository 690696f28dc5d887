package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

type linearParams struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	// Threshold only applies to logistic regression; zero means 0.5.
	Threshold float64 `json:"threshold,omitempty"`
}

func decodeLinear(encoder *Encoder, raw json.RawMessage) (linearParams, error) {
	var params linearParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, fmt.Errorf("decode coefficients: %w", err)
	}
	if len(params.Coefficients) != encoder.Width() {
		return params, fmt.Errorf("expected %d coefficients, got %d", encoder.Width(), len(params.Coefficients))
	}
	return params, nil
}

// LinearRegression predicts intercept + coefficients·x.
type LinearRegression struct {
	encoder *Encoder
	params  linearParams
}

func newLinearRegression(encoder *Encoder, raw json.RawMessage) (*LinearRegression, error) {
	params, err := decodeLinear(encoder, raw)
	if err != nil {
		return nil, err
	}
	return &LinearRegression{encoder: encoder, params: params}, nil
}

func (lr *LinearRegression) Kind() string { return KindLinearRegression }

func (lr *LinearRegression) Predict(ctx context.Context, frame Frame) ([]float64, error) {
	return predictRows(ctx, frame, lr.encoder, func(vector []float64) (float64, error) {
		return dot(lr.params.Intercept, lr.params.Coefficients, vector), nil
	})
}

// LogisticRegression predicts 1 when the positive-class probability reaches the threshold.
type LogisticRegression struct {
	encoder *Encoder
	params  linearParams
}

func newLogisticRegression(encoder *Encoder, raw json.RawMessage) (*LogisticRegression, error) {
	params, err := decodeLinear(encoder, raw)
	if err != nil {
		return nil, err
	}
	if params.Threshold == 0 {
		params.Threshold = 0.5
	}
	if params.Threshold < 0 || params.Threshold > 1 {
		return nil, errors.New("threshold must be between 0 and 1")
	}
	return &LogisticRegression{encoder: encoder, params: params}, nil
}

func (lr *LogisticRegression) Kind() string { return KindLogisticRegression }

func (lr *LogisticRegression) Predict(ctx context.Context, frame Frame) ([]float64, error) {
	return predictRows(ctx, frame, lr.encoder, func(vector []float64) (float64, error) {
		z := dot(lr.params.Intercept, lr.params.Coefficients, vector)
		if sigmoid(z) >= lr.params.Threshold {
			return 1, nil
		}
		return 0, nil
	})
}

func dot(intercept float64, coefficients, vector []float64) float64 {
	return intercept + floats.Dot(coefficients, vector)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
