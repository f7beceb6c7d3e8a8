package crawl

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor samples system memory and CPU in the background and
// answers "is it safe to add more workers right now", the signal
// CrawlPool's adaptive concurrency timer consults alongside queue
// depth. It is a simpler safe-to-grow gate than a tab-budget monitor
// tuned for a headless-browser page pool would need, since goroutine
// workers carry far less memory overhead per unit than a browser tab.
type ResourceMonitor struct {
	config ResourceMonitorConfig

	totalMemory uint64

	mu           sync.RWMutex
	lastMemStats runtime.MemStats

	cpuMu        sync.RWMutex
	lastCPUUsage float64

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig controls the thresholds that gate worker growth.
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // bytes kept free regardless of load
	SafetyThreshold     int64 // bytes: below this, scaling up is refused
	CPULoadThreshold    int   // percent: above this, scaling up is refused; >=200 disables the check
}

// NewResourceMonitor builds a ResourceMonitor, querying total system
// memory via gopsutil (falling back to a conservative default if the
// platform call fails).
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	vmStat, err := mem.VirtualMemory()
	var totalMem uint64
	if err != nil {
		log.Warn().Err(err).Msg("failed to read system memory, assuming 4GB")
		totalMem = 4 * 1024 * 1024 * 1024
	} else {
		totalMem = vmStat.Total
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &ResourceMonitor{
		config:       config,
		totalMemory:  totalMem,
		lastMemStats: memStats,
	}
}

// StartMonitoring launches a background sampling loop; idempotent.
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true
	go rm.loop(ctx, interval)
}

// StopMonitoring cancels the background sampling loop.
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

func (rm *ResourceMonitor) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			rm.mu.Lock()
			rm.lastMemStats = memStats
			rm.mu.Unlock()

			usage := sampleCPU()
			rm.cpuMu.Lock()
			rm.lastCPUUsage = usage
			rm.cpuMu.Unlock()
		}
	}
}

func sampleCPU() float64 {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		return 0
	}
	return percentages[0]
}

// CanAddWorkers reports whether available memory and CPU headroom
// permit growing the pool further.
func (rm *ResourceMonitor) CanAddWorkers() (ok bool, reason string) {
	rm.mu.RLock()
	allocated := rm.lastMemStats.Alloc
	rm.mu.RUnlock()

	available := int64(rm.totalMemory) - int64(allocated) - rm.config.SafetyReserveMemory
	if available < rm.config.SafetyThreshold {
		return false, "available memory below safety threshold"
	}

	if rm.config.CPULoadThreshold < 200 {
		rm.cpuMu.RLock()
		usage := rm.lastCPUUsage
		rm.cpuMu.RUnlock()
		if usage > float64(rm.config.CPULoadThreshold) {
			return false, "cpu usage above threshold"
		}
	}

	return true, ""
}
