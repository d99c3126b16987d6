package monitor

import (
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
)

// Metrics 服务指标，使用独立的 registry
type Metrics struct {
	registry *prometheus.Registry

	memUsage prometheus.Gauge
	cpuUsage prometheus.Gauge

	Requests  *prometheus.CounterVec
	Inference *prometheus.HistogramVec
	Sessions  prometheus.Gauge
	Degraded  prometheus.Counter
	Dropped   prometheus.Counter
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		Inference: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inference_duration_seconds",
			Help:    "Model inference latency",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"model"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sam_sessions_active",
			Help: "Number of live SAM sessions",
		}),
		Degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blur_degraded_total",
			Help: "Blur requests served by the synchronous fallback",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hover_dropped_total",
			Help: "Hover decode messages dropped by the throttle",
		}),
	}
	m.registry.MustRegister(m.memUsage, m.cpuUsage, m.Requests, m.Inference, m.Sessions, m.Degraded, m.Dropped)
	return m
}

// Handler /metrics 处理函数
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveInference 记录一次推理耗时
func (m *Metrics) ObserveInference(model string, start time.Time) {
	m.Inference.WithLabelValues(model).Observe(time.Since(start).Seconds())
}

// CheckProcessInfo 采集当前进程的内存和 CPU
func (m *Metrics) CheckProcessInfo(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpu, err := p.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpu*100) / 100)
	}
}

// Start 周期性采集进程信息，ctx 取消后退出
func (m *Metrics) Start(ctx context.Context, interval time.Duration) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckProcessInfo(p)
			}
		}
	}()
	return nil
}
