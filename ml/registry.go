package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
)

// ArtifactSource yields the serialized model bound to a task.
type ArtifactSource interface {
	ReadArtifact(task Task) ([]byte, error)
}

// FileSource reads one artifact file per task.
type FileSource map[Task]string

func (fs FileSource) ReadArtifact(task Task) ([]byte, error) {
	path, ok := fs[task]
	if !ok || path == "" {
		return nil, fmt.Errorf("no artifact path for %s", task)
	}
	return os.ReadFile(path)
}

// Registry binds each task to its predictor. It is never mutated after construction.
type Registry struct {
	predictors map[Task]Predictor
}

func NewRegistry(predictors map[Task]Predictor) (*Registry, error) {
	bound := make(map[Task]Predictor, len(predictors))
	for _, task := range Tasks() {
		predictor, ok := predictors[task]
		if !ok || predictor == nil {
			return nil, fmt.Errorf("no predictor for %s", task)
		}
		bound[task] = predictor
	}
	return &Registry{predictors: bound}, nil
}

// LoadRegistry reads and builds the predictor for every task.
func LoadRegistry(source ArtifactSource) (*Registry, error) {
	predictors := make(map[Task]Predictor, 3)
	for _, task := range Tasks() {
		payload, err := source.ReadArtifact(task)
		if err != nil {
			return nil, fmt.Errorf("load %s model: %w", task, err)
		}
		artifact, err := DecodeArtifact(payload)
		if err != nil {
			return nil, fmt.Errorf("load %s model: %w", task, err)
		}
		if artifact.Task != "" && artifact.Task != task {
			return nil, fmt.Errorf("load %s model: artifact is for %s", task, artifact.Task)
		}
		predictor, err := artifact.Predictor()
		if err != nil {
			return nil, fmt.Errorf("load %s model: %w", task, err)
		}
		predictors[task] = predictor
	}
	return NewRegistry(predictors)
}

// Dispatch runs the task's predictor over every row of the frame.
func (r *Registry) Dispatch(ctx context.Context, task Task, frame Frame) ([]float64, error) {
	predictor, ok := r.predictors[task]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	outputs, err := predictor.Predict(ctx, frame)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, ErrInferenceFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInferenceFailure, task, err)
	}
	if len(outputs) != frame.Len() {
		return nil, fmt.Errorf("%w: %s: %d outputs for %d rows", ErrInferenceFailure, task, len(outputs), frame.Len())
	}
	for i, v := range outputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s: row %d produced %v", ErrInferenceFailure, task, i+1, v)
		}
	}
	return outputs, nil
}

// Kind reports the model kind bound to a task, or "custom" for foreign predictors.
func (r *Registry) Kind(task Task) string {
	predictor, ok := r.predictors[task]
	if !ok {
		return ""
	}
	if k, ok := predictor.(interface{ Kind() string }); ok {
		return k.Kind()
	}
	return "custom"
}
