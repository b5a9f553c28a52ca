package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

const defaultSampleInterval = 5 * time.Second

// ProcessStats is the last sample of the gateway process.
type ProcessStats struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSMb      uint64    `json:"rss_mb"`
	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	Goroutines int       `json:"goroutines"`
	SampledAt  time.Time `json:"sampled_at"`
}

// ProcessSampler periodically reads the process usage. It runs as a supervised worker.
type ProcessSampler struct {
	log      *slog.Logger
	interval time.Duration
	proc     *process.Process
	mu       sync.RWMutex
	latest   ProcessStats
}

func NewProcessSampler(log *slog.Logger, interval time.Duration) (*ProcessSampler, error) {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessSampler{log: log, interval: interval, proc: proc}, nil
}

func (s *ProcessSampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sample()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Context done, stopping process sampling")
			return nil
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample refreshes the latest stats. Failing probes leave their previous value.
func (s *ProcessSampler) Sample() ProcessStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.latest
	stats.PID = s.proc.Pid

	if cpu, err := s.proc.CPUPercent(); err != nil {
		s.log.Debug("Error while finding process cpu usage", "error", err)
	} else {
		stats.CPUPercent = cpu
	}
	if mem, err := s.proc.MemoryInfo(); err != nil {
		s.log.Debug("Error while finding process memory usage", "error", err)
	} else {
		stats.RSSMb = mem.RSS / 1024 / 1024
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC
	stats.Goroutines = runtime.NumGoroutine()
	stats.SampledAt = time.Now().UTC()

	s.latest = stats
	return stats
}

func (s *ProcessSampler) GetLatest() ProcessStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
