package observability

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessSampler_Sample(t *testing.T) {
	req := require.New(t)
	sampler, err := NewProcessSampler(slog.Default(), time.Second)
	req.NoError(err)

	// Given nothing has been sampled yet
	req.True(sampler.GetLatest().SampledAt.IsZero())

	// When a sample is taken
	stats := sampler.Sample()

	// Then the current process is described
	req.Equal(int32(os.Getpid()), stats.PID)
	req.Positive(stats.Goroutines)
	req.False(stats.SampledAt.IsZero())
	req.Equal(stats, sampler.GetLatest())
}

func TestProcessSampler_Run_Stops_With_Context(t *testing.T) {
	req := require.New(t)
	sampler, err := NewProcessSampler(slog.Default(), 10*time.Millisecond)
	req.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req.NoError(sampler.Run(ctx))
	req.False(sampler.GetLatest().SampledAt.IsZero())
}
