package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"custanalytics/ml"
)

func record(collector *MetricsCollector, task ml.Task, ok, failed int) {
	for i := 0; i < ok; i++ {
		collector.RecordPrediction(task, 1, time.Millisecond, nil)
	}
	for i := 0; i < failed; i++ {
		collector.RecordPrediction(task, 0, time.Millisecond, fmt.Errorf("%w: bad", ml.ErrInferenceFailure))
	}
}

func TestAlertSystemFiresAndResolves(t *testing.T) {
	collector := NewMetricsCollector()
	alerts := NewAlertSystem(AlertConfig{FailureRatio: 0.25, MinRequests: 4}, collector, zap.NewNop())
	ctx := context.Background()

	record(collector, ml.TaskPurchase, 6, 4)
	record(collector, ml.TaskRevenue, 2, 1)
	alerts.Evaluate(ctx)

	active := alerts.Active()
	require.Len(t, active, 1)
	assert.Equal(t, ml.TaskPurchase, active[0].Task)
	assert.Equal(t, Warning, active[0].Level)
	assert.InDelta(t, 0.4, active[0].Value, 1e-9)

	// Only requests since the last evaluation count.
	record(collector, ml.TaskPurchase, 10, 0)
	alerts.Evaluate(ctx)
	assert.Empty(t, alerts.Active())
}

func TestAlertSystemResolvesWhenTrafficStops(t *testing.T) {
	collector := NewMetricsCollector()
	alerts := NewAlertSystem(AlertConfig{FailureRatio: 0.5, MinRequests: 4}, collector, zap.NewNop())
	ctx := context.Background()

	record(collector, ml.TaskRevenue, 0, 5)
	alerts.Evaluate(ctx)
	require.Len(t, alerts.Active(), 1)

	alerts.Evaluate(ctx)
	assert.Empty(t, alerts.Active())

	record(collector, ml.TaskRevenue, 0, 2)
	alerts.Evaluate(ctx)
	assert.Empty(t, alerts.Active(), "too few requests to fire")
}

func TestAlertSystemCritical(t *testing.T) {
	collector := NewMetricsCollector()
	alerts := NewAlertSystem(AlertConfig{FailureRatio: 0.2, MinRequests: 1}, collector, zap.NewNop())

	record(collector, ml.TaskSegment, 1, 4)
	alerts.Evaluate(context.Background())

	active := alerts.Active()
	require.Len(t, active, 1)
	assert.Equal(t, Critical, active[0].Level)
}

func TestAlertSystemWebhook(t *testing.T) {
	received := make(chan Alert, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		if err := json.NewDecoder(r.Body).Decode(&alert); err == nil {
			received <- alert
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	collector := NewMetricsCollector()
	alerts := NewAlertSystem(AlertConfig{
		FailureRatio: 0.5,
		MinRequests:  2,
		Cooldown:     time.Hour,
		Webhook:      hook.URL,
	}, collector, zap.NewNop())

	record(collector, ml.TaskRevenue, 0, 3)
	alerts.Evaluate(context.Background())
	record(collector, ml.TaskRevenue, 0, 3)
	alerts.Evaluate(context.Background())

	require.Len(t, received, 1, "cooldown suppresses the second notification")
	alert := <-received
	assert.Equal(t, ml.TaskRevenue, alert.Task)
	assert.Equal(t, Critical, alert.Level)
}
