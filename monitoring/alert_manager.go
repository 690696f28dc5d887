package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"custanalytics/ml"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	Warning  AlertLevel = "warning"
	Critical AlertLevel = "critical"
)

// Alert 告警结构
type Alert struct {
	ID         string     `json:"id"`
	Level      AlertLevel `json:"level"`
	Task       ml.Task    `json:"task"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	Threshold  float64    `json:"threshold"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// AlertConfig 告警阈值
type AlertConfig struct {
	// FailureRatio 失败请求占比达到该值时告警；达到两倍（或 1）时升级为 critical
	FailureRatio float64
	// MinRequests 评估窗口内请求数不足时不评估
	MinRequests int64
	Interval    time.Duration
	Cooldown    time.Duration
	Webhook     string
}

// AlertSystem 按任务评估预测失败率
type AlertSystem struct {
	mu         sync.RWMutex
	config     AlertConfig
	collector  *MetricsCollector
	logger     *zap.Logger
	httpClient *http.Client

	active   map[ml.Task]*Alert
	lastSent map[ml.Task]time.Time
	previous map[ml.Task]TaskMetrics
}

// NewAlertSystem 创建告警系统
func NewAlertSystem(config AlertConfig, collector *MetricsCollector, logger *zap.Logger) *AlertSystem {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.MinRequests <= 0 {
		config.MinRequests = 10
	}
	return &AlertSystem{
		config:     config,
		collector:  collector,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		active:     make(map[ml.Task]*Alert),
		lastSent:   make(map[ml.Task]time.Time),
		previous:   make(map[ml.Task]TaskMetrics),
	}
}

// Run 每个周期评估一次，直到 ctx 结束
func (a *AlertSystem) Run(ctx context.Context) {
	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Evaluate(ctx)
		}
	}
}

// Evaluate 比较自上次评估以来的请求与失败数，触发或解除告警
func (a *AlertSystem) Evaluate(ctx context.Context) {
	snapshot := a.collector.Snapshot()
	now := time.Now()

	var fired []*Alert
	a.mu.Lock()
	for _, task := range ml.Tasks() {
		current := snapshot.Tasks[task]
		last := a.previous[task]
		a.previous[task] = current

		requests := current.Requests - last.Requests
		var ratio float64
		if requests > 0 {
			ratio = float64(totalFailures(current)-totalFailures(last)) / float64(requests)
		}

		// 请求数不足时只解除，不触发
		if requests < a.config.MinRequests || ratio < a.config.FailureRatio || a.config.FailureRatio <= 0 {
			if alert, ok := a.active[task]; ok {
				alert.Resolved = true
				alert.ResolvedAt = &now
				delete(a.active, task)
				a.logger.Info("prediction failure alert resolved", zap.String("task", string(task)))
			}
			continue
		}

		level := Warning
		if ratio >= 1 || ratio >= 2*a.config.FailureRatio {
			level = Critical
		}
		alert := &Alert{
			ID:        uuid.NewString(),
			Level:     level,
			Task:      task,
			Message:   fmt.Sprintf("%d of %d %s predictions failed", int64(ratio*float64(requests)+0.5), requests, task),
			Value:     ratio,
			Threshold: a.config.FailureRatio,
			Timestamp: now,
		}
		a.active[task] = alert

		if a.config.Cooldown > 0 && now.Sub(a.lastSent[task]) < a.config.Cooldown {
			continue
		}
		a.lastSent[task] = now
		fired = append(fired, alert)
	}
	a.mu.Unlock()

	for _, alert := range fired {
		a.logger.Warn("prediction failure rate above threshold",
			zap.String("task", string(alert.Task)),
			zap.String("level", string(alert.Level)),
			zap.Float64("ratio", alert.Value),
			zap.Float64("threshold", alert.Threshold))
		if a.config.Webhook != "" {
			if err := a.sendWebhook(ctx, alert); err != nil {
				a.logger.Error("alert webhook failed", zap.Error(err))
			}
		}
	}
}

// Active 返回未解除的告警
func (a *AlertSystem) Active() []Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	alerts := make([]Alert, 0, len(a.active))
	for _, alert := range a.active {
		alerts = append(alerts, *alert)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Task < alerts[j].Task })
	return alerts
}

func (a *AlertSystem) sendWebhook(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.Webhook, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func totalFailures(m TaskMetrics) int64 {
	var total int64
	for _, count := range m.Failures {
		total += count
	}
	return total
}
