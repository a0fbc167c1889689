// Package audio processes raw (PCM) audio between the decoder and the
// encoder of an audio track.
package audio

import (
	"encoding/binary"
	"fmt"
)

// DecodePCM16 appends the interleaved little-endian 16-bit samples of data
// to dst.
func DecodePCM16(dst []int16, data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return dst, fmt.Errorf("odd amount of bytes: %d", len(data))
	}
	for i := 0; i < len(data); i += 2 {
		dst = append(dst, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	return dst, nil
}

// EncodePCM16 appends the samples as little-endian 16-bit PCM to dst.
func EncodePCM16(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// ExtractChannel returns the samples of a single channel of interleaved
// samples, normalized to [-1, 1).
func ExtractChannel(samples []int16, channels, channel int) []float64 {
	if channels <= 0 || channel >= channels {
		return nil
	}
	res := make([]float64, 0, len(samples)/channels)
	for i := channel; i < len(samples); i += channels {
		res = append(res, float64(samples[i])/32768.0)
	}
	return res
}
