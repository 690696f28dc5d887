package ml

import (
	"context"
	"fmt"
	"strings"
)

// Frame is read-only, name-addressed access to a table of feature rows.
type Frame interface {
	Len() int
	Value(row int, column string) (string, bool)
}

// Predictor turns every row of a frame into one output, in row order.
type Predictor interface {
	Predict(ctx context.Context, frame Frame) ([]float64, error)
}

type Task string

const (
	TaskRevenue  Task = "revenue"
	TaskPurchase Task = "purchase"
	TaskSegment  Task = "segment"
)

// Tasks returns every task in display order.
func Tasks() []Task {
	return []Task{TaskRevenue, TaskPurchase, TaskSegment}
}

func ParseTask(name string) (Task, error) {
	switch Task(strings.ToLower(strings.TrimSpace(name))) {
	case TaskRevenue:
		return TaskRevenue, nil
	case TaskPurchase:
		return TaskPurchase, nil
	case TaskSegment:
		return TaskSegment, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
}

// OutputColumn is the column appended to a batch result.
func (t Task) OutputColumn() string {
	switch t {
	case TaskRevenue:
		return "Predicted_Revenue"
	case TaskPurchase:
		return "Purchase_Prediction"
	case TaskSegment:
		return "Cluster"
	default:
		return ""
	}
}

// Discrete reports whether outputs of the task are integer labels.
func (t Task) Discrete() bool {
	return t == TaskPurchase || t == TaskSegment
}
