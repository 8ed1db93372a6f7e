package recon

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/agentstation/utc"
	"github.com/prometheus/procfs"

	"github.com/agentstation/recon/pkg/errors"
)

var errMeminfo = errors.New("meminfo lacks MemTotal or MemAvailable")

// ServiceStats is a point-in-time view of the engine and its host.
type ServiceStats struct {
	TotalReconciliations int     `json:"total_reconciliations" yaml:"total_reconciliations"`
	Completed            int     `json:"completed" yaml:"completed"`
	Failed               int     `json:"failed" yaml:"failed"`
	RetainedJobs         int     `json:"retained_jobs" yaml:"retained_jobs"`
	UptimeSeconds        float64 `json:"uptime_seconds" yaml:"uptime_seconds"`
	MemoryUsageMB        float64 `json:"memory_usage_mb" yaml:"memory_usage_mb"`

	// Host figures read from /proc. They are zero where procfs is
	// unavailable. CPU usage covers the interval since the previous
	// Stats call, or since boot on the first.
	CPUUsagePercent    float64 `json:"cpu_usage_percent" yaml:"cpu_usage_percent"`
	SystemMemoryUsedMB float64 `json:"system_memory_used_mb" yaml:"system_memory_used_mb"`

	Goroutines   int      `json:"goroutines" yaml:"goroutines"`
	CacheEntries int      `json:"similarity_cache_entries" yaml:"similarity_cache_entries"`
	LastUpdated  utc.Time `json:"last_updated" yaml:"last_updated"`
}

// Stats reports job totals and resource usage.
func (e *engine) Stats(ctx context.Context) (ServiceStats, error) {
	counts, err := e.store.Counts(ctx)
	if err != nil {
		return ServiceStats{}, err
	}
	page, err := e.store.List(ctx, 1, 0)
	if err != nil {
		return ServiceStats{}, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return ServiceStats{
		TotalReconciliations: counts.Total,
		Completed:            counts.Completed,
		Failed:               counts.Failed,
		RetainedJobs:         page.Total,
		UptimeSeconds:        time.Since(e.started).Seconds(),
		MemoryUsageMB:        float64(mem.HeapAlloc) / 1024 / 1024,
		CPUUsagePercent:      e.host.cpuPercent(),
		SystemMemoryUsedMB:   e.host.memoryUsedMB(),
		Goroutines:           runtime.NumGoroutine(),
		CacheEntries:         e.scorer.Len(),
		LastUpdated:          utc.Now(),
	}, nil
}

// cpuTimes is cumulative host CPU time in seconds.
type cpuTimes struct {
	busy, total float64
}

// hostSampler reads host CPU and memory figures. It keeps the previous
// CPU reading so utilisation is reported per interval.
type hostSampler struct {
	readCPU    func() (cpuTimes, error)
	readMemory func() (usedKB uint64, err error)

	mu   sync.Mutex
	last cpuTimes
}

func newHostSampler() *hostSampler {
	return &hostSampler{readCPU: procCPUTimes, readMemory: procMemoryUsed}
}

func (h *hostSampler) cpuPercent() float64 {
	now, err := h.readCPU()
	if err != nil {
		return 0
	}

	h.mu.Lock()
	busy, total := now.busy-h.last.busy, now.total-h.last.total
	h.last = now
	h.mu.Unlock()

	if total <= 0 {
		return 0
	}
	return min(max(busy/total*100, 0), 100)
}

func (h *hostSampler) memoryUsedMB() float64 {
	used, err := h.readMemory()
	if err != nil {
		return 0
	}
	return float64(used) / 1024
}

func procCPUTimes() (cpuTimes, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return cpuTimes{}, err
	}
	stat, err := fs.Stat()
	if err != nil {
		return cpuTimes{}, err
	}
	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	total := c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal + idle
	return cpuTimes{busy: total - idle, total: total}, nil
}

func procMemoryUsed() (uint64, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return 0, err
	}
	info, err := fs.Meminfo()
	if err != nil {
		return 0, err
	}
	if info.MemTotal == nil || info.MemAvailable == nil || *info.MemAvailable > *info.MemTotal {
		return 0, errMeminfo
	}
	return *info.MemTotal - *info.MemAvailable, nil
}
