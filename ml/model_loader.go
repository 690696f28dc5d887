package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	KindLinearRegression   = "linear_regression"
	KindLogisticRegression = "logistic_regression"
	KindDecisionTree       = "decision_tree"
	KindKMeans             = "kmeans"
)

// Artifact is the serialized form of a fitted model.
type Artifact struct {
	Kind    string          `json:"kind"`
	Task    Task            `json:"task,omitempty"`
	Version string          `json:"version,omitempty"`
	Encoder Encoder         `json:"encoder"`
	Model   json.RawMessage `json:"model"`
}

func DecodeArtifact(data []byte) (*Artifact, error) {
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if artifact.Kind == "" {
		return nil, errors.New("artifact kind is required")
	}
	if len(artifact.Model) == 0 {
		return nil, errors.New("artifact model is required")
	}
	return &artifact, nil
}

// Predictor builds the model described by the artifact.
func (a *Artifact) Predictor() (Predictor, error) {
	encoder := a.Encoder
	if err := encoder.init(); err != nil {
		return nil, fmt.Errorf("%s encoder: %w", a.Kind, err)
	}

	var (
		predictor Predictor
		err       error
	)
	switch a.Kind {
	case KindLinearRegression:
		predictor, err = newLinearRegression(&encoder, a.Model)
	case KindLogisticRegression:
		predictor, err = newLogisticRegression(&encoder, a.Model)
	case KindDecisionTree:
		predictor, err = newDecisionTree(&encoder, a.Model)
	case KindKMeans:
		predictor, err = newKMeans(&encoder, a.Model)
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Kind, err)
	}
	return predictor, nil
}

func DecodeModel(data []byte) (Predictor, error) {
	artifact, err := DecodeArtifact(data)
	if err != nil {
		return nil, err
	}
	return artifact.Predictor()
}

func LoadModel(path string) (Predictor, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	predictor, err := DecodeModel(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return predictor, nil
}

func predictRows(ctx context.Context, frame Frame, encoder *Encoder, fn func([]float64) (float64, error)) ([]float64, error) {
	outputs := make([]float64, frame.Len())
	for row := range outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vector, err := encoder.Encode(frame, row)
		if err != nil {
			return nil, err
		}
		output, err := fn(vector)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		outputs[row] = output
	}
	return outputs, nil
}
