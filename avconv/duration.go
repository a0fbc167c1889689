// Package avconv converts between libav values and avtransformer values:
// timestamps, codec identifiers and stream formats.
package avconv

import (
	"math"
	"time"

	"github.com/asticode/go-astiav"
)

const (
	// see https://ffmpeg.org/doxygen/trunk/group__lavu__time.html#ga2eaefe702f95f619ea6f2d08afa01be1
	avNoPTSValue = uint64(0x8000000000000000)
)

const (
	noDuration = time.Duration(math.MinInt64)
)

var (
	// TimeBaseMicroseconds is the time base of the presentation times of
	// codec.Buffer.
	TimeBaseMicroseconds = astiav.NewRational(1, 1_000_000)
)

func init() {
	if avNoPTSValue != uint64(any(int64(math.MinInt64)).(int64)) { // to bypass the compiler check
		panic("avNoPTSValue changed")
	}
}

func IsNoPTS(t int64) bool {
	return uint64(t) == avNoPTSValue
}

func Duration(t int64, timeBase astiav.Rational) time.Duration {
	if IsNoPTS(t) {
		return noDuration
	}

	return time.Duration(float64(t) * timeBase.Float64() * float64(time.Second))
}

// Microseconds converts a timestamp in the given time base into
// microseconds (rounding to the nearest), keeping the "no value" marker.
func Microseconds(t int64, timeBase astiav.Rational) int64 {
	if IsNoPTS(t) {
		return t
	}
	if timeBase.Den() == 0 {
		return 0
	}
	return int64(math.Round(float64(t) * float64(timeBase.Num()) * 1e6 / float64(timeBase.Den())))
}

// FromMicroseconds converts microseconds into a timestamp in the given time
// base (rounding to the nearest).
func FromMicroseconds(us int64, timeBase astiav.Rational) int64 {
	if IsNoPTS(us) {
		return us
	}
	if timeBase.Num() == 0 {
		return 0
	}
	return int64(math.Round(float64(us) * float64(timeBase.Den()) / (1e6 * float64(timeBase.Num()))))
}
