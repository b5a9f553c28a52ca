package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedGauge struct{ length, capacity int }

func (g fixedGauge) Backlog() (int, int) { return g.length, g.capacity }

func TestChannelCapacityWorker_Check(t *testing.T) {
	req := require.New(t)
	worker := NewChannelCapacityWorker(slog.Default(), []NamedGauge{
		{Name: "quiet", Gauge: fixedGauge{length: 1, capacity: 10}},
		{Name: "busy", Gauge: fixedGauge{length: 9, capacity: 10}},
		{Name: "unbuffered", Gauge: fixedGauge{length: 0, capacity: 0}},
	}, time.Second, 0.8)

	req.Equal([]string{"busy"}, worker.Check())
}

func TestChannelCapacityWorker_Run_Stops_With_Context(t *testing.T) {
	worker := NewChannelCapacityWorker(slog.Default(), nil, 5*time.Millisecond, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, worker.Run(ctx))
}
