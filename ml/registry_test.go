package ml

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePredictor struct {
	outputs []float64
	err     error
}

func (f *fakePredictor) Predict(ctx context.Context, frame Frame) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.outputs != nil {
		return f.outputs, nil
	}
	outputs := make([]float64, frame.Len())
	for i := range outputs {
		outputs[i] = float64(i)
	}
	return outputs, nil
}

func allTasks(p Predictor) map[Task]Predictor {
	return map[Task]Predictor{TaskRevenue: p, TaskPurchase: p, TaskSegment: p}
}

func TestNewRegistryRequiresAllTasks(t *testing.T) {
	_, err := NewRegistry(map[Task]Predictor{TaskRevenue: &fakePredictor{}})
	assert.ErrorContains(t, err, "no predictor for purchase")
}

func TestDispatchPreservesOrder(t *testing.T) {
	registry, err := NewRegistry(allTasks(&fakePredictor{}))
	require.NoError(t, err)

	outputs, err := registry.Dispatch(context.Background(), TaskSegment, rows{{}, {}, {}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, outputs)
	assert.Equal(t, "custom", registry.Kind(TaskSegment))
}

func TestDispatchWrapsPredictorErrors(t *testing.T) {
	registry, err := NewRegistry(allTasks(&fakePredictor{err: errors.New("unseen category")}))
	require.NoError(t, err)

	_, err = registry.Dispatch(context.Background(), TaskPurchase, rows{{}})
	assert.ErrorIs(t, err, ErrInferenceFailure)
	assert.ErrorContains(t, err, "unseen category")
	assert.Equal(t, "inference_failure", ErrorKind(err))
}

func TestDispatchOutputCountMismatch(t *testing.T) {
	registry, err := NewRegistry(allTasks(&fakePredictor{outputs: []float64{1}}))
	require.NoError(t, err)

	_, err = registry.Dispatch(context.Background(), TaskRevenue, rows{{}, {}})
	assert.ErrorIs(t, err, ErrInferenceFailure)
}

func TestDispatchRejectsNonFiniteOutputs(t *testing.T) {
	registry, err := NewRegistry(allTasks(&fakePredictor{outputs: []float64{1, math.NaN()}}))
	require.NoError(t, err)

	_, err = registry.Dispatch(context.Background(), TaskRevenue, rows{{}, {}})
	assert.ErrorIs(t, err, ErrInferenceFailure)
	assert.ErrorContains(t, err, "row 2")
}

func TestDispatchUnknownTask(t *testing.T) {
	registry, err := NewRegistry(allTasks(&fakePredictor{}))
	require.NoError(t, err)

	_, err = registry.Dispatch(context.Background(), Task("churn"), rows{{}})
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestLoadRegistryFromFiles(t *testing.T) {
	dir := t.TempDir()
	source := FileSource{}
	for task, artifact := range map[Task]string{
		TaskRevenue:  linearArtifact,
		TaskPurchase: treeArtifact,
		TaskSegment:  kmeansArtifact,
	} {
		path := filepath.Join(dir, string(task)+".json")
		require.NoError(t, os.WriteFile(path, []byte(artifact), 0o600))
		source[task] = path
	}

	registry, err := LoadRegistry(source)
	require.NoError(t, err)
	assert.Equal(t, KindLinearRegression, registry.Kind(TaskRevenue))
	assert.Equal(t, KindDecisionTree, registry.Kind(TaskPurchase))
	assert.Equal(t, KindKMeans, registry.Kind(TaskSegment))
}

func TestLoadRegistryRejectsMismatchedTask(t *testing.T) {
	dir := t.TempDir()
	source := FileSource{}
	for _, task := range Tasks() {
		path := filepath.Join(dir, string(task)+".json")
		// treeArtifact declares the purchase task.
		require.NoError(t, os.WriteFile(path, []byte(treeArtifact), 0o600))
		source[task] = path
	}

	_, err := LoadRegistry(source)
	assert.ErrorContains(t, err, "artifact is for purchase")
}

func TestParseTask(t *testing.T) {
	task, err := ParseTask(" Revenue ")
	require.NoError(t, err)
	assert.Equal(t, TaskRevenue, task)
	assert.Equal(t, "Predicted_Revenue", task.OutputColumn())
	assert.Equal(t, "Purchase_Prediction", TaskPurchase.OutputColumn())
	assert.Equal(t, "Cluster", TaskSegment.OutputColumn())

	_, err = ParseTask("churn")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestSchemaMissing(t *testing.T) {
	schema := DefaultSchema()
	assert.Len(t, schema.Columns(), 13)
	assert.Equal(t, []string{"price_2", "colour"}, schema.Missing([]string{
		"year", "month", "day", "order", "session_id", "page",
		"country", "page1_main_category", "page2_clothing_model", "location", "model_photography", "notes",
	}))
	assert.True(t, schema.IsNumeric("session_id"))
	assert.False(t, schema.IsNumeric("country"))
	assert.True(t, schema.Has("country"))
}
