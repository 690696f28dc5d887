// Package present attaches predictions to tables and renders single results.
package present

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"custanalytics/ml"
	"custanalytics/pipeline"
)

const (
	PurchaseYes = "Customer will Purchase"
	PurchaseNo  = "Customer will NOT Purchase"
)

// Augment returns the table with the task's output column appended.
func Augment(task ml.Task, table *pipeline.Table, outputs []float64) (*pipeline.Table, error) {
	column := task.OutputColumn()
	if column == "" {
		return nil, fmt.Errorf("%w: %q", ml.ErrUnknownTask, task)
	}
	if len(outputs) != table.Len() {
		return nil, fmt.Errorf("%d predictions for %d rows", len(outputs), table.Len())
	}
	values := make([]string, len(outputs))
	for i, v := range outputs {
		values[i] = FormatOutput(task, v)
	}
	return table.WithColumn(column, values)
}

// FormatOutput renders one output the way it is written to the CSV column.
func FormatOutput(task ml.Task, v float64) string {
	if task.Discrete() {
		return strconv.FormatInt(int64(math.Round(v)), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Message renders a single manual-entry prediction.
func Message(task ml.Task, v float64) string {
	switch task {
	case ml.TaskRevenue:
		return fmt.Sprintf("Estimated Revenue: %.2f", v)
	case ml.TaskPurchase:
		if v == 1 {
			return PurchaseYes
		}
		return PurchaseNo
	case ml.TaskSegment:
		return fmt.Sprintf("Customer belongs to Cluster %s", FormatOutput(task, v))
	default:
		return FormatOutput(task, v)
	}
}

func WriteCSV(w io.Writer, table *pipeline.Table) error {
	return table.WriteCSV(w)
}

// DownloadName is the file name offered for a task's augmented CSV.
func DownloadName(task ml.Task) string {
	switch task {
	case ml.TaskRevenue:
		return "revenue_predictions.csv"
	case ml.TaskPurchase:
		return "purchase_predictions.csv"
	case ml.TaskSegment:
		return "customer_segments.csv"
	default:
		return "predictions.csv"
	}
}

// Tab describes how a task is labelled in the UI.
type Tab struct {
	Task     ml.Task
	Title    string
	Heading  string
	Upload   string
	Button   string
	Download string
}

func Tabs() []Tab {
	return []Tab{
		{
			Task:     ml.TaskRevenue,
			Title:    "Revenue Prediction",
			Heading:  "Predict Customer Revenue",
			Upload:   "Upload CSV for Revenue Prediction",
			Button:   "Predict Revenue",
			Download: "Download Predictions",
		},
		{
			Task:     ml.TaskPurchase,
			Title:    "Purchase Prediction",
			Heading:  "Will the Customer Complete a Purchase?",
			Upload:   "Upload CSV for Purchase Prediction",
			Button:   "Predict Purchase",
			Download: "Download Predictions",
		},
		{
			Task:     ml.TaskSegment,
			Title:    "Customer Segmentation",
			Heading:  "Customer Segmentation",
			Upload:   "Upload CSV for Segmentation",
			Button:   "Find Customer Segment",
			Download: "Download Clusters",
		},
	}
}

func TabFor(task ml.Task) (Tab, bool) {
	for _, tab := range Tabs() {
		if tab.Task == task {
			return tab, true
		}
	}
	return Tab{}, false
}
