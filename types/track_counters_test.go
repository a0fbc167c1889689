package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackCountersMaxTimeMonotonic(t *testing.T) {
	c := NewTrackCounters()
	_, ok := c.MaxTimeUs()
	require.False(t, ok)

	c.Add(10, 1000)
	c.Add(10, 500)
	c.Add(10, 2000)
	c.Add(10, 1500)

	maxTime, ok := c.MaxTimeUs()
	require.True(t, ok)
	require.Equal(t, int64(2000), maxTime)
	first, _ := c.FirstTimeUs()
	require.Equal(t, int64(1000), first)
	require.Equal(t, uint64(4), c.Count.Load())
	require.Equal(t, uint64(40), c.Bytes.Load())
}

func TestTrackCountersConcurrent(t *testing.T) {
	c := NewTrackCounters()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Add(1, int64(g*1000+i))
			}
		}(g)
	}
	wg.Wait()
	maxTime, _ := c.MaxTimeUs()
	require.Equal(t, int64(7999), maxTime)
	require.Equal(t, uint64(8000), c.Count.Load())
}

func TestTrackCountersAverageBitrate(t *testing.T) {
	c := NewTrackCounters()
	require.Zero(t, c.AverageBitrate())
	c.Add(125_000, 0)
	c.Add(0, 1_000_000)
	require.Equal(t, 1_000_000, c.AverageBitrate())
}
