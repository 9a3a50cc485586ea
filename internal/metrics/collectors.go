package metrics

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"marketpulse/pkg/logger"
)

// ProcessCollector reports process vitals sampled through gopsutil on every scrape
type ProcessCollector struct {
	log  *logger.Logger
	proc *process.Process

	rss        *prometheus.Desc
	cpuPercent *prometheus.Desc
	sysMemory  *prometheus.Desc
}

// NewProcessCollector creates a collector for the current process
func NewProcessCollector(log *logger.Logger) (*ProcessCollector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return &ProcessCollector{
		log:  log.With("component", "process_collector"),
		proc: proc,

		rss: prometheus.NewDesc(
			"marketpulse_process_rss_bytes",
			"Resident set size of the analysis process",
			nil, nil,
		),
		cpuPercent: prometheus.NewDesc(
			"marketpulse_process_cpu_percent",
			"CPU usage of the analysis process since start",
			nil, nil,
		),
		sysMemory: prometheus.NewDesc(
			"marketpulse_system_memory_used_percent",
			"Host memory in use",
			nil, nil,
		),
	}, nil
}

// Describe implements prometheus.Collector
func (c *ProcessCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rss
	ch <- c.cpuPercent
	ch <- c.sysMemory
}

// Collect implements prometheus.Collector
func (c *ProcessCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	vitals, err := c.Sample(ctx)
	if err != nil {
		c.log.Debugw("Process vitals unavailable", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.rss, prometheus.GaugeValue, float64(vitals.RSSBytes))
	ch <- prometheus.MustNewConstMetric(c.cpuPercent, prometheus.GaugeValue, vitals.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.sysMemory, prometheus.GaugeValue, vitals.SystemMemoryPercent)
}

// Vitals is a point-in-time sample of process resource usage
type Vitals struct {
	RSSBytes            uint64  `json:"rss_bytes"`
	CPUPercent          float64 `json:"cpu_percent"`
	SystemMemoryPercent float64 `json:"system_memory_percent"`
}

// Sample reads the current vitals
func (c *ProcessCollector) Sample(ctx context.Context) (Vitals, error) {
	memInfo, err := c.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Vitals{}, err
	}
	cpuPercent, err := c.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return Vitals{}, err
	}

	v := Vitals{RSSBytes: memInfo.RSS, CPUPercent: cpuPercent}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		v.SystemMemoryPercent = vm.UsedPercent
	}
	return v, nil
}

// RegisterProcessCollector registers the collector with the default registry
func RegisterProcessCollector(collector *ProcessCollector) {
	prometheus.MustRegister(collector)
}
