package monitoring

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage is one sample of this process's resource consumption
type ResourceUsage struct {
	CPUPercent    float64   `json:"cpuPercent"`
	MemoryUsedMB  float64   `json:"memoryUsedMB"`
	MemoryTotalMB float64   `json:"memoryTotalMB"`
	MemoryPercent float64   `json:"memoryPercent"`
	NumGoroutines int       `json:"numGoroutines"`
	SampledAt     time.Time `json:"sampledAt"`
}

// Monitor samples process resource usage on an interval and keeps the latest
// sample available for the health endpoint. Long-running ffmpeg supervision
// leaks show up here first.
type Monitor struct {
	mu     sync.RWMutex
	latest ResourceUsage
}

// NewMonitor creates a monitor with no samples yet
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Start samples on the given interval until ctx is cancelled
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	go func() {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			log.Printf("⚠️ Resource monitor disabled, cannot inspect own process: %v", err)
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				usage, err := getResourceUsage(proc)
				if err != nil {
					log.Printf("⚠️ Resource sample failed: %v", err)
					continue
				}

				m.mu.Lock()
				m.latest = usage
				m.mu.Unlock()

				log.Printf("📊 Resource Usage - CPU: %.2f%%, Memory: %.2f/%.2f MB (%.2f%%), Goroutines: %d",
					usage.CPUPercent,
					usage.MemoryUsedMB,
					usage.MemoryTotalMB,
					usage.MemoryPercent,
					usage.NumGoroutines)
			}
		}
	}()
}

// Current returns the most recent sample. SampledAt is zero before the
// first tick.
func (m *Monitor) Current() ResourceUsage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func getResourceUsage(proc *process.Process) (ResourceUsage, error) {
	var usage ResourceUsage

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return usage, fmt.Errorf("error getting CPU usage: %v", err)
	}
	usage.CPUPercent = cpuPercent

	virtualMem, err := mem.VirtualMemory()
	if err != nil {
		return usage, fmt.Errorf("error getting memory info: %v", err)
	}

	procMem, err := proc.MemoryInfo()
	if err != nil {
		return usage, fmt.Errorf("error getting process memory: %v", err)
	}

	usage.MemoryUsedMB = float64(procMem.RSS) / 1024 / 1024
	usage.MemoryTotalMB = float64(virtualMem.Total) / 1024 / 1024
	usage.MemoryPercent = float64(procMem.RSS) / float64(virtualMem.Total) * 100

	usage.NumGoroutines = runtime.NumGoroutine()
	usage.SampledAt = time.Now()

	return usage, nil
}
