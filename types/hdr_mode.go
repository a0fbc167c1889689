package types

import (
	"fmt"
	"strings"
)

// HDRMode describes how HDR input is handled.
type HDRMode int

const (
	HDRModeKeepHDR = HDRMode(iota)
	HDRModeToneMapHDRToSDRUsingCodec
	HDRModeToneMapHDRToSDRUsingGPU
	HDRModeExperimentalForceInterpretHDRAsSDR
	endOfHDRMode
)

func (m HDRMode) String() string {
	switch m {
	case HDRModeKeepHDR:
		return "keep_hdr"
	case HDRModeToneMapHDRToSDRUsingCodec:
		return "tone_map_hdr_to_sdr_using_codec"
	case HDRModeToneMapHDRToSDRUsingGPU:
		return "tone_map_hdr_to_sdr_using_gpu"
	case HDRModeExperimentalForceInterpretHDRAsSDR:
		return "experimental_force_interpret_hdr_as_sdr"
	}
	return fmt.Sprintf("HDRMode(%d)", int(m))
}

func (m *HDRMode) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for candidate := HDRMode(0); candidate < endOfHDRMode; candidate++ {
		if candidate.String() == s {
			*m = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown HDR mode: '%s'", s)
}

func (m HDRMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// TonemapsOnGPU returns true if HDR input has to be tone-mapped in the frame
// processing graph.
func (m HDRMode) TonemapsOnGPU() bool {
	return m == HDRModeToneMapHDRToSDRUsingGPU
}
