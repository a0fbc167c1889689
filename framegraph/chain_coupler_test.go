package framegraph

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/executor"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/logger"
	"golang.org/x/sync/errgroup"
)

func newTestContext(t *testing.T) context.Context {
	l := logrus.Default().WithLevel(logger.LevelWarning)
	ctx := logger.CtxWithLogger(context.Background(), l)
	t.Cleanup(func() { belt.Flush(ctx) })
	return ctx
}

type recordingConsumer struct {
	locker   sync.Mutex
	pts      []int64
	ends     int
	released []frame.Texture
}

func (c *recordingConsumer) QueueInputFrame(ctx context.Context, tex frame.Texture, ptsUs int64) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.pts = append(c.pts, ptsUs)
	return nil
}

func (c *recordingConsumer) SignalEndOfCurrentInputStream(ctx context.Context) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.ends++
	return nil
}

func (c *recordingConsumer) ReleaseOutputFrame(ctx context.Context, tex frame.Texture) error {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.released = append(c.released, tex)
	return nil
}

func (c *recordingConsumer) snapshot() ([]int64, int, int) {
	c.locker.Lock()
	defer c.locker.Unlock()
	return append([]int64{}, c.pts...), c.ends, len(c.released)
}

func TestChainCouplerNeverDropsFrames(t *testing.T) {
	ctx := newTestContext(t)
	for iteration := 0; iteration < 20; iteration++ {
		e := executor.New(ctx, nil)
		producer := &recordingConsumer{}
		consumer := &recordingConsumer{}
		c := NewChainCoupler(producer, consumer, e, nil)

		const frameCount = 500
		rng := rand.New(rand.NewSource(int64(iteration)))
		delays := make([]bool, frameCount*2)
		for i := range delays {
			delays[i] = rng.Intn(3) == 0
		}

		var g errgroup.Group
		g.Go(func() error {
			for i := 0; i < frameCount; i++ {
				if delays[i] {
					runtime.Gosched()
				}
				c.OnOutputFrameAvailable(ctx, frame.NewTexture(i, i, 1, 1), int64(i))
			}
			c.OnCurrentOutputStreamEnded(ctx)
			return nil
		})
		g.Go(func() error {
			for i := 0; i < frameCount; i++ {
				if delays[frameCount+i] {
					runtime.Gosched()
				}
				c.OnReadyToAcceptInputFrame(ctx)
				c.OnInputFrameProcessed(ctx, frame.NewTexture(i, i, 1, 1))
			}
			return nil
		})
		require.NoError(t, g.Wait())

		require.Eventually(t, func() bool {
			pts, ends, released := consumer.snapshot()
			_, _, producerReleased := producer.snapshot()
			return len(pts) == frameCount && ends == 1 && released == 0 && producerReleased == frameCount
		}, 5*time.Second, time.Millisecond)

		pts, _, _ := consumer.snapshot()
		for i, v := range pts {
			require.Equal(t, int64(i), v)
		}
		require.Zero(t, c.QueueLength())
		require.Zero(t, c.AvailableSlots())
		require.NoError(t, e.Release(ctx, nil, time.Second))
	}
}

func TestChainCouplerEndOfStreamOrdering(t *testing.T) {
	ctx := newTestContext(t)
	e := executor.New(ctx, nil)
	defer e.Release(ctx, nil, time.Second)
	consumer := &recordingConsumer{}
	c := NewChainCoupler(&recordingConsumer{}, consumer, e, nil)

	c.OnCurrentOutputStreamEnded(ctx)
	c.OnOutputFrameAvailable(ctx, frame.NewTexture(1, 1, 1, 1), 10)
	c.OnCurrentOutputStreamEnded(ctx)
	c.OnOutputFrameAvailable(ctx, frame.NewTexture(2, 2, 1, 1), 20)
	c.OnCurrentOutputStreamEnded(ctx)
	require.Equal(t, 4, c.QueueLength())

	drain := func() {
		require.NoError(t, e.SubmitAndWait(ctx, func(ctx context.Context) error { return nil }))
	}
	drain()
	pts, ends, _ := consumer.snapshot()
	require.Empty(t, pts)
	require.Equal(t, 1, ends)

	c.OnReadyToAcceptInputFrame(ctx)
	drain()
	pts, ends, _ = consumer.snapshot()
	require.Equal(t, []int64{10}, pts)
	require.Equal(t, 2, ends)

	c.OnReadyToAcceptInputFrame(ctx)
	drain()
	pts, ends, _ = consumer.snapshot()
	require.Equal(t, []int64{10, 20}, pts)
	require.Equal(t, 3, ends)
	require.Zero(t, c.QueueLength())

	c.OnReadyToAcceptInputFrame(ctx)
	require.Equal(t, 1, c.AvailableSlots())
	c.OnOutputFrameAvailable(ctx, frame.NewTexture(3, 3, 1, 1), 30)
	require.Zero(t, c.AvailableSlots())
	drain()
	pts, _, _ = consumer.snapshot()
	require.Equal(t, []int64{10, 20, 30}, pts)
}
