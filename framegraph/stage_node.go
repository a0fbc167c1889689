package framegraph

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/gpu"
	"github.com/xaionaro-go/avtransformer/logger"
)

// stageNode runs an effect.Stage, rendering into a pool of output textures.
// Every method is called on the worker.
type stageNode struct {
	Stage    effect.Stage
	GPU      *gpu.Context
	Capacity int

	inputListener  InputListener
	outputListener OutputListener

	inputWidth, inputHeight   int
	outputWidth, outputHeight int
	freeTextures              []frame.Texture
	inUseTextures             map[int]frame.Texture
}

var (
	_ FrameConsumer = (*stageNode)(nil)
	_ FrameProducer = (*stageNode)(nil)
)

func newStageNode(stage effect.Stage, gpuCtx *gpu.Context) *stageNode {
	return &stageNode{
		Stage:         stage,
		GPU:           gpuCtx,
		Capacity:      1,
		inUseTextures: map[int]frame.Texture{},
	}
}

func (n *stageNode) String() string {
	return n.Stage.String()
}

// SetInputListener reports every free slot to the listener.
func (n *stageNode) SetInputListener(ctx context.Context, l InputListener) {
	n.inputListener = l
	for i := 0; i < n.freeSlots(); i++ {
		l.OnReadyToAcceptInputFrame(ctx)
	}
}

func (n *stageNode) SetOutputListener(l OutputListener) {
	n.outputListener = l
}

func (n *stageNode) freeSlots() int {
	return n.Capacity - len(n.inUseTextures)
}

// SetTransformMatrix sets the matrix applied to the input texture; used by
// the input stage for the transform of the input surface.
func (n *stageNode) SetTransformMatrix(m gpu.Matrix) {
	if s, ok := n.Stage.(*effect.MatrixStage); ok {
		s.ExtraMatrix = m
	}
}

func (n *stageNode) ensureConfigured(ctx context.Context, inputWidth, inputHeight int) error {
	if inputWidth == n.inputWidth && inputHeight == n.inputHeight && n.outputWidth > 0 {
		return nil
	}
	w, h, err := n.Stage.Configure(ctx, inputWidth, inputHeight)
	if err != nil {
		return fmt.Errorf("unable to configure %s: %w", n.Stage, err)
	}
	n.inputWidth, n.inputHeight = inputWidth, inputHeight
	if w == n.outputWidth && h == n.outputHeight && len(n.freeTextures)+len(n.inUseTextures) > 0 {
		return nil
	}
	logger.Debugf(ctx, "%s: output size %dx%d -> %dx%d", n, n.outputWidth, n.outputHeight, w, h)
	if len(n.inUseTextures) > 0 {
		return fmt.Errorf("%s: cannot resize the textures while %d of them are in use", n, len(n.inUseTextures))
	}
	if err := n.deleteTextures(ctx); err != nil {
		return err
	}
	for i := 0; i < n.Capacity; i++ {
		tex, err := n.GPU.CreateTexture(ctx, w, h)
		if err != nil {
			return fmt.Errorf("unable to create a texture: %w", err)
		}
		n.freeTextures = append(n.freeTextures, tex)
	}
	n.outputWidth, n.outputHeight = w, h
	return nil
}

func (n *stageNode) deleteTextures(ctx context.Context) error {
	for _, tex := range n.freeTextures {
		if err := n.GPU.DeleteTexture(ctx, tex); err != nil {
			return fmt.Errorf("unable to delete %s: %w", tex, err)
		}
	}
	n.freeTextures = n.freeTextures[:0]
	return nil
}

func (n *stageNode) QueueInputFrame(
	ctx context.Context,
	inputTexture frame.Texture,
	presentationTimeUs int64,
) (_err error) {
	logger.Tracef(ctx, "QueueInputFrame[%s](%s, %d)", n, inputTexture, presentationTimeUs)
	defer func() { logger.Tracef(ctx, "/QueueInputFrame[%s]: %v", n, _err) }()
	if n.freeSlots() <= 0 {
		return fmt.Errorf("%s received a frame without a free slot", n)
	}
	if err := n.ensureConfigured(ctx, inputTexture.Width, inputTexture.Height); err != nil {
		return err
	}
	outputTexture := n.freeTextures[0]
	n.freeTextures = n.freeTextures[1:]
	n.inUseTextures[outputTexture.TexID] = outputTexture

	if err := n.GPU.BindFramebuffer(ctx, outputTexture); err != nil {
		return fmt.Errorf("unable to bind %s: %w", outputTexture, err)
	}
	if err := n.Stage.DrawFrame(ctx, n.GPU, inputTexture, presentationTimeUs); err != nil {
		return fmt.Errorf("%s: unable to draw the frame at %dus: %w", n, presentationTimeUs, err)
	}
	if n.inputListener != nil {
		n.inputListener.OnInputFrameProcessed(ctx, inputTexture)
	}
	if n.outputListener != nil {
		n.outputListener.OnOutputFrameAvailable(ctx, outputTexture, presentationTimeUs)
	}
	return nil
}

func (n *stageNode) ReleaseOutputFrame(ctx context.Context, outputTexture frame.Texture) error {
	if _, ok := n.inUseTextures[outputTexture.TexID]; !ok {
		return fmt.Errorf("%s: texture %s is not in use", n, outputTexture)
	}
	delete(n.inUseTextures, outputTexture.TexID)
	n.freeTextures = append(n.freeTextures, outputTexture)
	if n.inputListener != nil {
		n.inputListener.OnReadyToAcceptInputFrame(ctx)
	}
	return nil
}

func (n *stageNode) SignalEndOfCurrentInputStream(ctx context.Context) error {
	if n.outputListener != nil {
		n.outputListener.OnCurrentOutputStreamEnded(ctx)
	}
	return nil
}

func (n *stageNode) Release(ctx context.Context) error {
	var result []error
	if err := n.Stage.Release(ctx); err != nil {
		result = append(result, fmt.Errorf("unable to release %s: %w", n.Stage, err))
	}
	if err := n.deleteTextures(ctx); err != nil {
		result = append(result, err)
	}
	for _, tex := range n.inUseTextures {
		if err := n.GPU.DeleteTexture(ctx, tex); err != nil {
			result = append(result, err)
		}
	}
	n.inUseTextures = map[int]frame.Texture{}
	return joinErrors(result)
}
