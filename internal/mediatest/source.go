// Package mediatest provides in-memory sources, codecs and muxer backends
// for testing transformations without real media.
package mediatest

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/source"
	"github.com/xaionaro-go/xsync"
)

const (
	AACFrameSize = 1024
)

type Track struct {
	Format *codec.Format

	// SampleSize is the size of each compressed sample in bytes.
	SampleSize int

	// KeyFrameInterval is the amount of samples between key frames; 0
	// means every sample is a key frame.
	KeyFrameInterval int

	// samplesPerSecond and samplesPerUnit define the sample duration as
	// samplesPerUnit/samplesPerSecond seconds.
	samplesPerSecond float64
	samplesPerUnit   float64
}

func (t Track) sampleTimeUs(idx int) int64 {
	return int64(float64(idx) * t.samplesPerUnit * 1_000_000 / t.samplesPerSecond)
}

func NewVideoTrack(mimeType string, width, height int, frameRate float64) Track {
	format := codec.NewVideoFormat(mimeType, width, height)
	format.FrameRate = frameRate
	format.Bitrate = 4_000_000
	return Track{
		Format:           format,
		SampleSize:       int(float64(format.Bitrate) / 8 / frameRate),
		KeyFrameInterval: 30,
		samplesPerSecond: frameRate,
		samplesPerUnit:   1,
	}
}

func NewAudioTrack(mimeType string, sampleRate, channels int) Track {
	format := codec.NewAudioFormat(mimeType, sampleRate, channels)
	format.Bitrate = 128_000
	return Track{
		Format:           format,
		SampleSize:       format.Bitrate / 8 * AACFrameSize / sampleRate,
		samplesPerSecond: float64(sampleRate),
		samplesPerUnit:   AACFrameSize,
	}
}

// Source is an in-memory source.Source generating the samples of its
// tracks up to the duration.
type Source struct {
	TrackList      []Track
	TotalDuration  int64
	StartTime      int64
	ReadsPerResult map[source.ReadResult]int

	locker    xsync.Mutex
	positions []int
	prepared  bool
	closed    bool
}

var _ source.Source = (*Source)(nil)

func NewSource(durationUs int64, tracks ...Track) *Source {
	for idx := range tracks {
		tracks[idx].Format.DurationUs = durationUs
	}
	return &Source{
		TrackList:      tracks,
		TotalDuration:  durationUs,
		ReadsPerResult: map[source.ReadResult]int{},
		positions:      make([]int, len(tracks)),
	}
}

// NewH264AACSource returns a source of a 1080p 30fps H.264 track and a
// 44.1kHz stereo AAC track.
func NewH264AACSource(durationUs int64) *Source {
	return NewSource(durationUs,
		NewVideoTrack(codec.MimeTypeVideoH264, 1920, 1080, 30),
		NewAudioTrack(codec.MimeTypeAudioAAC, 44100, 2),
	)
}

func (s *Source) String() string {
	return fmt.Sprintf("mediatest.Source(%d tracks, %dus)", len(s.TrackList), s.TotalDuration)
}

func (s *Source) Prepare(ctx context.Context) error {
	return xsync.DoR1(ctx, &s.locker, func() error {
		if s.closed {
			return fmt.Errorf("the source is closed")
		}
		s.prepared = true
		return nil
	})
}

func (s *Source) Tracks() []source.TrackFormat {
	return xsync.DoR1(context.Background(), &s.locker, func() []source.TrackFormat {
		if !s.prepared {
			return nil
		}
		result := make([]source.TrackFormat, 0, len(s.TrackList))
		for idx, t := range s.TrackList {
			result = append(result, source.TrackFormat{Index: idx, Format: t.Format.Clone()})
		}
		return result
	})
}

func (s *Source) Read(
	ctx context.Context,
	trackIndex int,
	buf *codec.Buffer,
) (_ret source.ReadResult, _err error) {
	s.locker.Do(ctx, func() {
		_ret, _err = s.read(trackIndex, buf)
		if _err == nil {
			s.ReadsPerResult[_ret]++
		}
	})
	return
}

func (s *Source) read(trackIndex int, buf *codec.Buffer) (source.ReadResult, error) {
	if !s.prepared || s.closed {
		return source.ReadResultUndefined, fmt.Errorf("the source is not prepared")
	}
	if trackIndex < 0 || trackIndex >= len(s.TrackList) {
		return source.ReadResultUndefined, fmt.Errorf("invalid track index %d", trackIndex)
	}
	t := s.TrackList[trackIndex]
	pos := s.positions[trackIndex]
	ts := t.sampleTimeUs(pos)
	if ts >= s.TotalDuration {
		return source.ReadResultEndOfStream, nil
	}
	s.positions[trackIndex]++

	buf.Reset()
	for i := 0; i < max(t.SampleSize, 1); i++ {
		buf.Data = append(buf.Data, byte(pos))
	}
	buf.PresentationTimeUs = s.StartTime + ts
	if t.KeyFrameInterval == 0 || pos%t.KeyFrameInterval == 0 {
		buf.Flags |= codec.BufferFlagKeyFrame
	}
	return source.ReadResultBufferRead, nil
}

// SampleCount returns the amount of samples the track has.
func (s *Source) SampleCount(trackIndex int) int {
	t := s.TrackList[trackIndex]
	count := 0
	for t.sampleTimeUs(count) < s.TotalDuration {
		count++
	}
	return count
}

func (s *Source) StartTimeUs() int64 {
	return s.StartTime
}

func (s *Source) DurationUs() int64 {
	return s.TotalDuration
}

func (s *Source) Close(ctx context.Context) error {
	s.locker.Do(ctx, func() {
		s.closed = true
	})
	return nil
}
