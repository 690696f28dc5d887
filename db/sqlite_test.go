package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custanalytics/ml"
)

var artifacts = map[ml.Task]string{
	ml.TaskRevenue: `{"kind": "linear_regression", "encoder": {"numeric": [{"name": "price_2"}]},
		"model": {"intercept": 1, "coefficients": [2]}}`,
	ml.TaskPurchase: `{"kind": "logistic_regression", "task": "purchase", "encoder": {"numeric": [{"name": "page"}]},
		"model": {"intercept": 0, "coefficients": [1]}}`,
	ml.TaskSegment: `{"kind": "kmeans", "encoder": {"numeric": [{"name": "order"}]},
		"model": {"centroids": [[0], [5]]}}`,
}

func TestBundleRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "models.db")

	bundle, err := CreateBundle(path)
	require.NoError(t, err)
	for task, artifact := range artifacts {
		require.NoError(t, bundle.PutArtifact(ctx, task, []byte(artifact)))
	}
	// Replacing keeps one row per task.
	require.NoError(t, bundle.PutArtifact(ctx, ml.TaskRevenue, []byte(artifacts[ml.TaskRevenue])))
	require.NoError(t, bundle.Close())

	bundle, err = OpenBundle(path)
	require.NoError(t, err)
	defer bundle.Close()

	infos, err := bundle.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, ml.TaskPurchase, infos[0].Task)
	assert.Equal(t, ml.KindLogisticRegression, infos[0].Kind)

	registry, err := ml.LoadRegistry(bundle)
	require.NoError(t, err)
	assert.Equal(t, ml.KindKMeans, registry.Kind(ml.TaskSegment))
}

func TestBundleRejectsInvalidArtifacts(t *testing.T) {
	ctx := context.Background()
	bundle, err := CreateBundle(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	defer bundle.Close()

	assert.Error(t, bundle.PutArtifact(ctx, ml.TaskRevenue, []byte(`{"kind": "svm"}`)))
	assert.ErrorContains(t, bundle.PutArtifact(ctx, ml.TaskRevenue, []byte(artifacts[ml.TaskPurchase])), "artifact is for purchase")

	_, err = bundle.ReadArtifact(ml.TaskSegment)
	assert.ErrorContains(t, err, "no artifact for segment")
}

func TestOpenBundleMissingFile(t *testing.T) {
	_, err := OpenBundle(filepath.Join(t.TempDir(), "absent.db"))
	assert.Error(t, err)
}

func TestBundlePathWithURIMetacharacters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "odd?dir#1")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "models 100%.db")

	bundle, err := CreateBundle(path)
	require.NoError(t, err)
	require.NoError(t, bundle.PutArtifact(context.Background(), ml.TaskSegment, []byte(artifacts[ml.TaskSegment])))
	require.NoError(t, bundle.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "bundle written at the literal path")

	bundle, err = OpenBundle(path)
	require.NoError(t, err)
	defer bundle.Close()
	payload, err := bundle.ReadArtifact(ml.TaskSegment)
	require.NoError(t, err)
	assert.JSONEq(t, artifacts[ml.TaskSegment], string(payload))
}

func TestFileDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/a%3Fb%23c.db?mode=ro", fileDSN("/tmp/a?b#c.db", "ro"))
	assert.Equal(t, "file:models.db?mode=rwc", fileDSN("models.db", "rwc"))
}
