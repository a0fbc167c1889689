package audio

import (
	"context"
	"fmt"
	"math"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/logger"
)

// SpeedChanger plays 16-bit PCM audio faster or slower by resampling it
// with linear interpolation (the pitch changes together with the speed).
// The fractional read position is carried between input buffers, so the
// result does not depend on how the input is split.
type SpeedChanger struct {
	Speed float64

	channels int

	// history holds the not yet consumed input frames; position is the read
	// position in frames relative to its beginning.
	history  []int16
	position float64

	output     []byte
	inputEnded bool
}

var _ Processor = (*SpeedChanger)(nil)

func NewSpeedChanger(speed float64) *SpeedChanger {
	return &SpeedChanger{
		Speed: speed,
	}
}

func (s *SpeedChanger) String() string {
	return fmt.Sprintf("SpeedChanger(%g)", s.Speed)
}

func (s *SpeedChanger) Configure(ctx context.Context, input *codec.Format) (*codec.Format, error) {
	if !(s.Speed > 0) || math.IsInf(s.Speed, 0) {
		return nil, fmt.Errorf("invalid speed %g", s.Speed)
	}
	if input.PCMEncoding != codec.PCMEncoding16Bit && input.PCMEncoding != codec.PCMEncodingUndefined {
		return nil, ErrUnsupportedFormat{Format: input}
	}
	if input.Channels <= 0 {
		return nil, ErrUnsupportedFormat{Format: input}
	}
	s.channels = input.Channels
	s.Flush()
	logger.Debugf(ctx, "%s configured for %s", s, input)
	return input, nil
}

func (s *SpeedChanger) IsActive() bool {
	return s.Speed != 1
}

func (s *SpeedChanger) QueueInput(ctx context.Context, data []byte) error {
	if s.channels == 0 {
		return fmt.Errorf("%s is not configured", s)
	}
	if len(data)%(2*s.channels) != 0 {
		return fmt.Errorf("the input is not aligned to %d channels: %d bytes", s.channels, len(data))
	}
	var err error
	s.history, err = DecodePCM16(s.history, data)
	if err != nil {
		return err
	}
	s.resample(false)
	return nil
}

func (s *SpeedChanger) frameCount() int {
	return len(s.history) / s.channels
}

// resample emits every output frame whose neighbors are already known;
// when final is set the last input frame is used without interpolation.
func (s *SpeedChanger) resample(final bool) {
	frames := s.frameCount()
	var samples []int16
	for {
		idx := int(s.position)
		if idx >= frames || (!final && idx+1 >= frames) {
			break
		}
		frac := s.position - float64(idx)
		for ch := 0; ch < s.channels; ch++ {
			cur := float64(s.history[idx*s.channels+ch])
			if idx+1 < frames {
				next := float64(s.history[(idx+1)*s.channels+ch])
				cur += (next - cur) * frac
			}
			samples = append(samples, int16(math.Round(cur)))
		}
		s.position += s.Speed
	}
	s.output = EncodePCM16(s.output, samples)

	consumed := min(int(s.position), frames)
	s.history = append(s.history[:0], s.history[consumed*s.channels:]...)
	s.position -= float64(consumed)
}

func (s *SpeedChanger) Output() []byte {
	out := s.output
	s.output = nil
	return out
}

func (s *SpeedChanger) QueueEndOfStream(ctx context.Context) {
	if s.inputEnded {
		return
	}
	s.inputEnded = true
	if s.channels > 0 {
		s.resample(true)
	}
	s.history = s.history[:0]
}

func (s *SpeedChanger) IsEnded() bool {
	return s.inputEnded && len(s.output) == 0
}

func (s *SpeedChanger) Flush() {
	s.history = s.history[:0]
	s.position = 0
	s.output = nil
	s.inputEnded = false
}

func (s *SpeedChanger) Reset() {
	s.Flush()
	s.channels = 0
}
