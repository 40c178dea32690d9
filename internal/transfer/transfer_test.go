package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/vidpreview/internal/domain"
)

func TestSimulator_MonotonicToHundred(t *testing.T) {
	s := Simulator{Interval: time.Millisecond, MaxStep: 30}

	var got []float64
	err := s.Transfer(context.Background(), domain.Candidate{Name: "a.mp4"}, func(p float64) {
		got = append(got, p)
	})
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1], "进度必须严格递增：%v", got)
	}
	assert.Equal(t, 100.0, got[len(got)-1])
}

func TestSimulator_ZeroRandomStillTerminates(t *testing.T) {
	s := Simulator{Interval: time.Millisecond, MaxStep: 50, Rand: func() float64 { return 0 }}

	var ticks int
	err := s.Transfer(context.Background(), domain.Candidate{}, func(float64) { ticks++ })
	require.NoError(t, err)
	assert.Equal(t, 2, ticks)
}

func TestSimulator_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Simulator{Interval: time.Hour}.Transfer(ctx, domain.Candidate{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
