package workers

import (
	"context"
	"log/slog"
	"time"
)

const defaultCapacityThreshold = 0.8

// Gauge exposes the fill level of a buffered queue.
type Gauge interface {
	Backlog() (length, capacity int)
}

type NamedGauge struct {
	Name  string
	Gauge Gauge
}

// ChannelCapacityWorker periodically samples queue backlogs and warns when one
// gets close to full. Reading len and cap of a channel is non-blocking, so this
// won't interfere with the goroutines using it.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	gauges         []NamedGauge
	metricInterval time.Duration
	threshold      float64
}

func NewChannelCapacityWorker(log *slog.Logger, gauges []NamedGauge, metricInterval time.Duration, threshold float64) *ChannelCapacityWorker {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultCapacityThreshold
	}
	return &ChannelCapacityWorker{
		log:            log,
		gauges:         gauges,
		metricInterval: metricInterval,
		threshold:      threshold,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check samples every gauge once and returns the names of those above the threshold.
func (w *ChannelCapacityWorker) Check() []string {
	var saturated []string
	for _, ng := range w.gauges {
		length, capacity := ng.Gauge.Backlog()
		if capacity == 0 {
			continue
		}
		if float64(length)/float64(capacity) >= w.threshold {
			saturated = append(saturated, ng.Name)
			w.log.Warn("Channel close to capacity", "name", ng.Name, "length", length, "capacity", capacity)
		}
	}
	return saturated
}
