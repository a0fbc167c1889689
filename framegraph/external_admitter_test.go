package framegraph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/executor"
	"github.com/xaionaro-go/avtransformer/gpu"
)

type heldTasks struct {
	locker sync.Mutex
	tasks  []executor.Task
}

func (h *heldTasks) Submit(ctx context.Context, task executor.Task) error {
	h.locker.Lock()
	defer h.locker.Unlock()
	h.tasks = append(h.tasks, task)
	return nil
}

func (h *heldTasks) runAll(t *testing.T, ctx context.Context) {
	h.locker.Lock()
	tasks := h.tasks
	h.tasks = nil
	h.locker.Unlock()
	for _, task := range tasks {
		require.NoError(t, task(ctx))
	}
}

func TestExternalAdmitterCountsFramesOnProducerSide(t *testing.T) {
	ctx := newTestContext(t)
	submitter := &heldTasks{}
	a := newExternalAdmitter(gpu.NewInputSurface(), nil, submitter, nil)

	a.OnFrameAvailable(ctx)
	a.OnFrameAvailable(ctx)
	require.Equal(t, 2, a.AvailableFrameCount())

	submitter.runAll(t, ctx)
	require.Equal(t, 2, a.AvailableFrameCount())
	require.Zero(t, a.InFlight())
}
