package mediatest

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/muxer"
	"github.com/xaionaro-go/xsync"
)

type Sample struct {
	TrackIndex         int
	Size               int
	IsKeyFrame         bool
	PresentationTimeUs int64
}

// MuxerBackend records the tracks and samples written to it.
type MuxerBackend struct {
	MaxDelay time.Duration

	locker          xsync.Mutex
	formats         []*codec.Format
	samples         []Sample
	isReleased      bool
	forCancellation bool
}

var _ muxer.Backend = (*MuxerBackend)(nil)

func NewMuxerBackend() *MuxerBackend {
	return &MuxerBackend{
		MaxDelay: 10 * time.Second,
	}
}

func (b *MuxerBackend) AddTrack(ctx context.Context, format *codec.Format) (int, error) {
	return xsync.DoR1(ctx, &b.locker, func() int {
		b.formats = append(b.formats, format.Clone())
		return len(b.formats) - 1
	}), nil
}

func (b *MuxerBackend) WriteSampleData(
	ctx context.Context,
	trackIndex int,
	data []byte,
	isKeyFrame bool,
	presentationTimeUs int64,
) error {
	return xsync.DoR1(ctx, &b.locker, func() error {
		if b.isReleased {
			return fmt.Errorf("the muxer is released")
		}
		if trackIndex < 0 || trackIndex >= len(b.formats) {
			return fmt.Errorf("invalid track index %d", trackIndex)
		}
		b.samples = append(b.samples, Sample{
			TrackIndex:         trackIndex,
			Size:               len(data),
			IsKeyFrame:         isKeyFrame,
			PresentationTimeUs: presentationTimeUs,
		})
		return nil
	})
}

func (b *MuxerBackend) MaxDelayBetweenSamples() time.Duration {
	return b.MaxDelay
}

func (b *MuxerBackend) Release(ctx context.Context, forCancellation bool) error {
	b.locker.Do(ctx, func() {
		b.isReleased = true
		b.forCancellation = forCancellation
	})
	return nil
}

func (b *MuxerBackend) Formats() []*codec.Format {
	return xsync.DoR1(context.Background(), &b.locker, func() []*codec.Format {
		return append([]*codec.Format{}, b.formats...)
	})
}

// TrackSamples returns the samples written to the track of the mime type.
func (b *MuxerBackend) TrackSamples(mimeType string) []Sample {
	return xsync.DoR1(context.Background(), &b.locker, func() []Sample {
		trackIndex := -1
		for idx, f := range b.formats {
			if f.MimeType == mimeType {
				trackIndex = idx
			}
		}
		var result []Sample
		for _, s := range b.samples {
			if s.TrackIndex == trackIndex {
				result = append(result, s)
			}
		}
		return result
	})
}

func (b *MuxerBackend) IsReleased() (bool, bool) {
	b.locker.ManualLock(context.Background())
	defer b.locker.ManualUnlock(context.Background())
	return b.isReleased, b.forCancellation
}
