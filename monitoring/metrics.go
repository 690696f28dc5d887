package monitoring

import (
	"sync"
	"time"

	"custanalytics/ml"
)

// MetricsCollector 预测指标收集器
type MetricsCollector struct {
	tasks     map[ml.Task]*TaskMetrics
	tasksLock sync.RWMutex

	startTime time.Time
	prom      *promMetrics
}

// TaskMetrics 单个任务的指标
type TaskMetrics struct {
	Requests  int64            `json:"requests"`
	Rows      int64            `json:"rows"`
	Failures  map[string]int64 `json:"failures"`
	LatencyMs LatencySummary   `json:"latency_ms"`
	LastSeen  time.Time        `json:"last_seen"`
}

// LatencySummary 延迟摘要
type LatencySummary struct {
	Count   int64   `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	total   float64
}

// Snapshot 指标快照
type Snapshot struct {
	Uptime string                  `json:"uptime"`
	Tasks  map[ml.Task]TaskMetrics `json:"tasks"`
	Since  time.Time               `json:"since"`
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	collector := &MetricsCollector{
		tasks:     make(map[ml.Task]*TaskMetrics),
		startTime: time.Now(),
		prom:      newPromMetrics(),
	}
	for _, task := range ml.Tasks() {
		collector.tasks[task] = &TaskMetrics{Failures: make(map[string]int64)}
	}
	return collector
}

// RecordPrediction 记录一次预测请求；err 非空时按错误类型计数
func (mc *MetricsCollector) RecordPrediction(task ml.Task, rows int, elapsed time.Duration, err error) {
	mc.tasksLock.Lock()
	defer mc.tasksLock.Unlock()

	metrics, ok := mc.tasks[task]
	if !ok {
		return
	}
	mc.prom.record(task, rows, elapsed, err)
	metrics.Requests++
	metrics.LastSeen = time.Now()
	if err != nil {
		metrics.Failures[ml.ErrorKind(err)]++
		return
	}
	metrics.Rows += int64(rows)

	ms := float64(elapsed) / float64(time.Millisecond)
	latency := &metrics.LatencyMs
	if latency.Count == 0 || ms < latency.Min {
		latency.Min = ms
	}
	if ms > latency.Max {
		latency.Max = ms
	}
	latency.Count++
	latency.total += ms
	latency.Average = latency.total / float64(latency.Count)
}

// Snapshot 返回指标副本
func (mc *MetricsCollector) Snapshot() Snapshot {
	mc.tasksLock.RLock()
	defer mc.tasksLock.RUnlock()

	tasks := make(map[ml.Task]TaskMetrics, len(mc.tasks))
	for task, metrics := range mc.tasks {
		metricsCopy := *metrics
		metricsCopy.Failures = make(map[string]int64, len(metrics.Failures))
		for kind, count := range metrics.Failures {
			metricsCopy.Failures[kind] = count
		}
		tasks[task] = metricsCopy
	}

	return Snapshot{
		Uptime: time.Since(mc.startTime).Round(time.Second).String(),
		Tasks:  tasks,
		Since:  mc.startTime,
	}
}
