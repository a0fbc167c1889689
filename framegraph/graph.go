// Package framegraph is the frame processing graph: it takes the frames a
// decoder renders into its input surface, draws them through a chain of
// texture processing stages and renders the result into an output surface.
//
// All the GPU work runs on the worker of an executor.Executor; the public
// methods of Graph may be called from any goroutine.
package framegraph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/executor"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/gpu"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type Config struct {
	Effects []effect.Effect

	// HDRMode selects whether HDR input is tone-mapped to SDR in the
	// terminal pass.
	HDRMode types.HDRMode

	// LimitedRangeOutput converts the output to the BT.709 limited range.
	LimitedRangeOutput bool
}

type Graph struct {
	Config   Config
	Options  config
	Executor *executor.Executor

	ctx          context.Context
	listener     Listener
	inputSurface *gpu.InputSurface
	inputEnded   atomic.Bool
	isBuilt      atomic.Bool

	// constructed on the worker
	gpu      *gpu.Context
	admitter *ExternalAdmitter
	nodes    []*stageNode
	couplers []*ChainCoupler
	final    *finalStage
	closer   *astikit.Closer

	infoLocker             xsync.Mutex
	nextInputFrameInfo     typing.Optional[frame.Info]
	previousStreamOffsetUs typing.Optional[int64]

	releaseOnce sync.Once
	releaseErr  error
}

// New builds the graph on a new executor worker.
func New(
	ctx context.Context,
	cfg Config,
	listener Listener,
	opts ...Option,
) (_ret *Graph, _err error) {
	logger.Tracef(ctx, "New")
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()
	g := &Graph{
		Config:       cfg,
		Options:      Options(opts).config(),
		ctx:          logger.WithField(xcontext.DetachDone(ctx), "module", "framegraph"),
		listener:     listener,
		inputSurface: gpu.NewInputSurface(),
		closer:       astikit.NewCloser(),
	}
	g.Executor = executor.New(
		g.ctx,
		types.ErrorHandlerFunc(g.onAsyncError),
		executor.OptionName("framegraph"),
		executor.OptionDefaultReleaseTimeout(g.Options.ReleaseTimeout),
	)
	if err := g.Executor.SubmitAndWait(ctx, g.build); err != nil {
		g.Executor.Release(ctx, g.releaseOnWorker, g.Options.ReleaseTimeout)
		return nil, types.NewErrFrameProcessing(fmt.Errorf("unable to build the graph: %w", err))
	}
	g.isBuilt.Store(true)
	g.inputSurface.SetOnFrameAvailableListener(func() {
		g.admitter.OnFrameAvailable(g.ctx)
	})
	return g, nil
}

func (g *Graph) onAsyncError(ctx context.Context, err error) {
	if !g.isBuilt.Load() {
		logger.Debugf(ctx, "an error while building the graph: %v", err)
		return
	}
	var errTransformation *types.ErrTransformation
	if !errors.As(err, &errTransformation) {
		errTransformation = types.NewErrFrameProcessing(err)
	}
	g.listener.OnError(ctx, errTransformation)
}

func (g *Graph) passes() ([]effect.MatrixTransformation, []effect.Pass, []effect.MatrixTransformation) {
	if !g.Options.CoalesceMatrices {
		return nil, effect.OnePassPerEffect(g.Config.Effects), nil
	}
	var first, last []effect.MatrixTransformation
	passes := effect.Coalesce(g.Config.Effects)
	if len(passes) > 0 && passes[0].IsMatrix() {
		first = passes[0].Matrices
		passes = passes[1:]
	}
	if n := len(passes); n > 0 && passes[n-1].IsMatrix() {
		last = passes[n-1].Matrices
		passes = passes[:n-1]
	}
	return first, passes, last
}

func (g *Graph) build(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "build")
	defer func() { logger.Tracef(ctx, "/build: %v", _err) }()
	gpuCtx, err := gpu.NewContext(ctx)
	if err != nil {
		return fmt.Errorf("unable to create the GPU context: %w", err)
	}
	g.gpu = gpuCtx
	g.closer.Add(func() {
		if err := gpuCtx.Release(ctx); err != nil {
			logger.Errorf(ctx, "unable to release the GPU context: %v", err)
		}
	})

	first, passes, last := g.passes()
	g.nodes = append(g.nodes, newStageNode(effect.NewMatrixStage(first...), gpuCtx))
	for _, pass := range passes {
		stage, err := pass.NewStage(ctx)
		if err != nil {
			return err
		}
		g.nodes = append(g.nodes, newStageNode(stage, gpuCtx))
	}
	for _, node := range g.nodes {
		node := node
		g.closer.Add(func() {
			if err := node.Release(ctx); err != nil {
				logger.Errorf(ctx, "unable to release %s: %v", node, err)
			}
		})
	}
	logger.Debugf(ctx, "built %d stages, %d trailing matrices", len(g.nodes), len(last))

	g.final = newFinalStage(
		gpuCtx,
		last,
		gpu.NewColorConverter(g.Config.HDRMode.TonemapsOnGPU(), g.Config.LimitedRangeOutput),
		g.listener,
		g.Options.ReleaseFramesAutomatically,
		&g.inputEnded,
	)
	g.closer.Add(func() {
		if err := g.final.Release(ctx); err != nil {
			logger.Errorf(ctx, "unable to release the final stage: %v", err)
		}
	})

	errorHandler := types.ErrorHandlerFunc(g.onAsyncError)
	g.admitter = newExternalAdmitter(g.inputSurface, g.nodes[0], g.Executor, errorHandler)
	g.closer.Add(func() {
		if err := g.admitter.Release(ctx); err != nil {
			logger.Errorf(ctx, "unable to release the external texture: %v", err)
		}
	})
	g.nodes[0].SetInputListener(ctx, g.admitter)

	for idx := 0; idx < len(g.nodes)-1; idx++ {
		producer, consumer := g.nodes[idx], g.nodes[idx+1]
		coupler := NewChainCoupler(producer, consumer, g.Executor, errorHandler)
		producer.SetOutputListener(coupler)
		consumer.SetInputListener(ctx, coupler)
		g.couplers = append(g.couplers, coupler)
	}
	lastNode := g.nodes[len(g.nodes)-1]
	coupler := NewChainCoupler(lastNode, g.final, g.Executor, errorHandler)
	lastNode.SetOutputListener(coupler)
	g.final.SetInputListener(ctx, coupler)
	g.couplers = append(g.couplers, coupler)
	return nil
}

// InputSurface returns the surface decoders render the input frames into.
func (g *Graph) InputSurface() *gpu.InputSurface {
	return g.inputSurface
}

// SetInputFrameInfo sets the description of the frames registered next.
func (g *Graph) SetInputFrameInfo(ctx context.Context, info frame.Info) error {
	if err := info.Validate(); err != nil {
		return fmt.Errorf("invalid frame info %s: %w", info, err)
	}
	g.infoLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		g.nextInputFrameInfo = typing.Opt(info)
		if !g.previousStreamOffsetUs.IsSet() || g.previousStreamOffsetUs.Get() != info.StreamOffsetUs {
			g.final.appendStream(ctx, info.StreamOffsetUs)
			g.previousStreamOffsetUs = typing.Opt(info.StreamOffsetUs)
		}
	})
	return nil
}

// RegisterInputFrame announces a frame that is going to be rendered into
// the input surface.
func (g *Graph) RegisterInputFrame(ctx context.Context) error {
	if g.inputEnded.Load() {
		return fmt.Errorf("the input has already ended")
	}
	info := xsync.DoR1(xsync.WithNoLogging(ctx, true), &g.infoLocker, func() typing.Optional[frame.Info] {
		return g.nextInputFrameInfo
	})
	if !info.IsSet() {
		return fmt.Errorf("SetInputFrameInfo must be called before RegisterInputFrame")
	}
	g.admitter.RegisterInputFrame(ctx, info.Get())
	return nil
}

// PendingInputFrameCount returns the amount of registered frames that are
// not admitted to the graph yet.
func (g *Graph) PendingInputFrameCount() int {
	return g.admitter.PendingFrameCount()
}

// SetOutputSurfaceInfo sets the surface the output frames are rendered to;
// nil detaches the current one and the frames are dropped. May be called
// from the Listener.
func (g *Graph) SetOutputSurfaceInfo(info *SurfaceInfo) {
	g.final.setOutputSurfaceInfo(info)
}

// ReleaseOutputFrame renders the oldest available output frame at the given
// time, or drops it with DropOutputFrame. Only used if the frames are not
// released automatically.
func (g *Graph) ReleaseOutputFrame(ctx context.Context, releaseTimeNs int64) error {
	return g.Executor.Submit(ctx, func(ctx context.Context) error {
		return g.final.releaseOutputFrame(ctx, releaseTimeNs)
	})
}

// SignalEndOfInput tells that no more frames will be registered.
func (g *Graph) SignalEndOfInput(ctx context.Context) error {
	if g.inputEnded.Swap(true) {
		return fmt.Errorf("the end of input was already signaled")
	}
	g.admitter.SignalEndOfInput(ctx)
	return nil
}

func (g *Graph) IsInputEnded() bool {
	return g.inputEnded.Load()
}

func (g *Graph) Admitter() *ExternalAdmitter {
	return g.admitter
}

func (g *Graph) Couplers() []*ChainCoupler {
	return g.couplers
}

// StageCount returns the amount of stages before the terminal pass.
func (g *Graph) StageCount() int {
	return len(g.nodes)
}

func (g *Graph) RenderedFrameCount() uint64 {
	return g.final.renderedFrames.Load()
}

func (g *Graph) DroppedFrameCount() uint64 {
	return g.final.droppedFrames.Load()
}

func (g *Graph) releaseOnWorker(ctx context.Context) error {
	return g.closer.Close()
}

// Release stops the worker and frees every GPU resource, waiting up to the
// release timeout.
func (g *Graph) Release(ctx context.Context) error {
	g.releaseOnce.Do(func() {
		logger.Debugf(ctx, "Release")
		g.inputSurface.Release()
		g.releaseErr = g.Executor.Release(ctx, g.releaseOnWorker, g.Options.ReleaseTimeout)
	})
	return g.releaseErr
}
