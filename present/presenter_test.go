package present

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custanalytics/ml"
	"custanalytics/pipeline"
)

const uploadCSV = `year,month,day,order,session_id,price_2,page,country,page1_main_category,page2_clothing_model,colour,location,model_photography,notes
2008,4,1,1,1,1,1,29,1,A13,1,5,1,first
2008,4,1,2,1,2,1,29,1,A16,1,6,1,second
2008,4,2,1,2,1,2,9,3,C7,3,2,2,third
`

// rowIndex predicts the row number, which makes order checks trivial.
type rowIndex struct{}

func (rowIndex) Predict(ctx context.Context, frame ml.Frame) ([]float64, error) {
	outputs := make([]float64, frame.Len())
	for i := range outputs {
		outputs[i] = float64(i) + 0.25
	}
	return outputs, nil
}

func TestAugmentAllTasks(t *testing.T) {
	registry, err := ml.NewRegistry(map[ml.Task]ml.Predictor{
		ml.TaskRevenue: rowIndex{}, ml.TaskPurchase: rowIndex{}, ml.TaskSegment: rowIndex{},
	})
	require.NoError(t, err)
	normalizer := pipeline.NewNormalizer(ml.DefaultSchema(), pipeline.NewValidator(ml.DefaultSchema()))

	for _, task := range ml.Tasks() {
		t.Run(string(task), func(t *testing.T) {
			table, err := normalizer.Batch(strings.NewReader(uploadCSV), "")
			require.NoError(t, err)
			outputs, err := registry.Dispatch(context.Background(), task, table)
			require.NoError(t, err)

			result, err := Augment(task, table, outputs)
			require.NoError(t, err)
			assert.Equal(t, table.Len(), result.Len())
			assert.Len(t, result.Columns(), len(table.Columns())+1)
			assert.Equal(t, task.OutputColumn(), result.Columns()[len(result.Columns())-1])

			for i := 0; i < result.Len(); i++ {
				notes, _ := result.Value(i, "notes")
				original, _ := table.Value(i, "notes")
				assert.Equal(t, original, notes)

				prediction, _ := result.Value(i, task.OutputColumn())
				assert.Equal(t, FormatOutput(task, outputs[i]), prediction)
			}
		})
	}
}

func TestAugmentDownloadRoundTrip(t *testing.T) {
	table, err := pipeline.ReadCSV(strings.NewReader(uploadCSV))
	require.NoError(t, err)

	result, err := Augment(ml.TaskRevenue, table, []float64{12.5, 0.125, 300})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, result))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], ",notes,Predicted_Revenue"))
	assert.Equal(t, "2008,4,1,1,1,1,1,29,1,A13,1,5,1,first,12.5", lines[1])

	reread, err := pipeline.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, result.Rows(), reread.Rows())
}

func TestAugmentRejectsLengthMismatch(t *testing.T) {
	table, err := pipeline.ReadCSV(strings.NewReader(uploadCSV))
	require.NoError(t, err)

	_, err = Augment(ml.TaskSegment, table, []float64{1})
	assert.Error(t, err)
}

func TestFormatOutput(t *testing.T) {
	assert.Equal(t, "1234.5678", FormatOutput(ml.TaskRevenue, 1234.5678))
	assert.Equal(t, "1", FormatOutput(ml.TaskPurchase, 1))
	assert.Equal(t, "3", FormatOutput(ml.TaskSegment, 3.0))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Estimated Revenue: 42.10", Message(ml.TaskRevenue, 42.1))
	assert.Equal(t, "Estimated Revenue: 0.00", Message(ml.TaskRevenue, 0))
	assert.Equal(t, "Customer belongs to Cluster 2", Message(ml.TaskSegment, 2))

	assert.Equal(t, PurchaseYes, Message(ml.TaskPurchase, 1))
	for _, label := range []float64{0, 2, -1} {
		assert.Equal(t, PurchaseNo, Message(ml.TaskPurchase, label))
	}
}

func TestDownloadNames(t *testing.T) {
	assert.Equal(t, "revenue_predictions.csv", DownloadName(ml.TaskRevenue))
	assert.Equal(t, "purchase_predictions.csv", DownloadName(ml.TaskPurchase))
	assert.Equal(t, "customer_segments.csv", DownloadName(ml.TaskSegment))

	tab, ok := TabFor(ml.TaskSegment)
	require.True(t, ok)
	assert.Equal(t, "Find Customer Segment", tab.Button)
}
