package extradata

import (
	"fmt"
)

var aacSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

const aacExplicitSampleRate = 0x0F

// AACASC is an MPEG-4 AudioSpecificConfig.
type AACASC struct {
	AudioObjectType int
	SampleRate      int
	Channels        int
}

func ParseAACASC(b []byte) (*AACASC, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("the config is too short (%d bytes)", len(b))
	}
	// 5 bits object type, 4 bits sampling frequency index, 4 bits channel configuration
	v := uint16(b[0])<<8 | uint16(b[1])
	asc := &AACASC{AudioObjectType: int(v >> 11)}
	switch asc.AudioObjectType {
	case 1, 2, 3, 4, 5, 17, 29:
	default:
		return nil, fmt.Errorf("unsupported audio object type %d", asc.AudioObjectType)
	}

	channelConfig := 0
	switch idx := int(v>>7) & 0x0F; {
	case idx < len(aacSampleRates):
		asc.SampleRate = aacSampleRates[idx]
		channelConfig = int(v>>3) & 0x0F
	case idx == aacExplicitSampleRate:
		// 24 bits of explicit frequency follow the index
		if len(b) < 5 {
			return nil, fmt.Errorf("the config is too short for an explicit sample rate (%d bytes)", len(b))
		}
		bits := uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
		asc.SampleRate = int(bits>>7) & 0xFFFFFF
		channelConfig = int(bits>>3) & 0x0F
	default:
		return nil, fmt.Errorf("reserved sampling frequency index %d", idx)
	}

	switch {
	case channelConfig >= 1 && channelConfig <= 6:
		asc.Channels = channelConfig
	case channelConfig == 7:
		asc.Channels = 8
	}
	return asc, nil
}

func (a *AACASC) String() string {
	return fmt.Sprintf("AAC AudioSpecificConfig: object type %d, %d Hz, %d channels", a.AudioObjectType, a.SampleRate, a.Channels)
}
