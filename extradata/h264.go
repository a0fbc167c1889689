package extradata

import (
	"encoding/binary"
	"fmt"
	"strings"
)

type H264NalUnitType uint8

const (
	H264NalUnitTypeNonIDR        H264NalUnitType = 1
	H264NalUnitTypeIDR           H264NalUnitType = 5
	H264NalUnitTypeSEI           H264NalUnitType = 6
	H264NalUnitTypeSPS           H264NalUnitType = 7
	H264NalUnitTypePPS           H264NalUnitType = 8
	H264NalUnitTypeAUD           H264NalUnitType = 9
	H264NalUnitTypeEndOfSequence H264NalUnitType = 10
	H264NalUnitTypeEndOfStream   H264NalUnitType = 11
	H264NalUnitTypeFiller        H264NalUnitType = 12
)

func H264NALUType(nalu []byte) H264NalUnitType {
	if len(nalu) == 0 {
		return 0
	}
	return H264NalUnitType(nalu[0] & 0x1F)
}

func (t H264NalUnitType) String() string {
	switch t {
	case H264NalUnitTypeNonIDR:
		return "non-IDR slice"
	case H264NalUnitTypeIDR:
		return "IDR slice"
	case H264NalUnitTypeSEI:
		return "SEI"
	case H264NalUnitTypeSPS:
		return "SPS"
	case H264NalUnitTypePPS:
		return "PPS"
	case H264NalUnitTypeAUD:
		return "AUD"
	case H264NalUnitTypeEndOfSequence:
		return "end of sequence"
	case H264NalUnitTypeEndOfStream:
		return "end of stream"
	case H264NalUnitTypeFiller:
		return "filler"
	default:
		return fmt.Sprintf("type %d", uint8(t))
	}
}

// H264AnnexB is H.264 initialization data in the Annex-B form: the
// parameter sets, each behind a start code.
type H264AnnexB struct {
	NALUs [][]byte
}

func ParseH264AnnexB(b []byte) (*H264AnnexB, error) {
	if !IsAnnexB(b) {
		return nil, fmt.Errorf("the data does not start with a start code")
	}
	nalus := SplitAnnexB(b)
	if len(nalus) == 0 {
		return nil, fmt.Errorf("no NAL units found")
	}
	return &H264AnnexB{NALUs: nalus}, nil
}

func (s *H264AnnexB) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "H.264 Annex-B (%d NAL units)\n", len(s.NALUs))
	if avcc, err := s.AVCC(); err == nil {
		fmt.Fprintf(&sb, "  profile: 0x%02X, level: 0x%02X\n", avcc.Profile, avcc.Level)
	}
	for i, nalu := range s.NALUs {
		fmt.Fprintf(&sb, "  [%d] %s, %d bytes: % X\n", i, H264NALUType(nalu), len(nalu), preview(nalu))
	}
	return sb.String()
}

// AVCC builds the AVCDecoderConfigurationRecord equivalent to the
// parameter sets.
func (s *H264AnnexB) AVCC() (*H264AVCC, error) {
	avcc := &H264AVCC{NalLengthSize: 4}
	for _, nalu := range s.NALUs {
		switch H264NALUType(nalu) {
		case H264NalUnitTypeSPS:
			avcc.SPS = append(avcc.SPS, nalu)
		case H264NalUnitTypePPS:
			avcc.PPS = append(avcc.PPS, nalu)
		}
	}
	if len(avcc.SPS) == 0 {
		return nil, fmt.Errorf("no SPS found")
	}
	if len(avcc.SPS[0]) < 4 {
		return nil, fmt.Errorf("the SPS is too short (%d bytes)", len(avcc.SPS[0]))
	}
	avcc.Profile = avcc.SPS[0][1]
	avcc.Compatibility = avcc.SPS[0][2]
	avcc.Level = avcc.SPS[0][3]
	return avcc, nil
}

// H264AVCC is an AVCDecoderConfigurationRecord (ISO/IEC 14496-15).
type H264AVCC struct {
	Profile       uint8
	Compatibility uint8
	Level         uint8
	NalLengthSize int
	SPS           [][]byte
	PPS           [][]byte
}

func ParseH264AVCC(b []byte) (*H264AVCC, error) {
	if len(b) < 7 {
		return nil, fmt.Errorf("the record is too short (%d bytes)", len(b))
	}
	if b[0] != 1 {
		return nil, fmt.Errorf("unsupported configuration version %d", b[0])
	}
	if b[4]&0xFC != 0xFC {
		return nil, fmt.Errorf("invalid reserved bits 0x%02X", b[4])
	}
	avcc := &H264AVCC{
		Profile:       b[1],
		Compatibility: b[2],
		Level:         b[3],
		NalLengthSize: int(b[4]&0x03) + 1,
	}
	rest := b[5:]
	var err error
	avcc.SPS, rest, err = readParameterSets(rest, int(rest[0]&0x1F))
	if err != nil {
		return nil, fmt.Errorf("unable to read the SPS list: %w", err)
	}
	if len(rest) == 0 {
		return avcc, nil
	}
	avcc.PPS, _, err = readParameterSets(rest, int(rest[0]))
	if err != nil {
		return nil, fmt.Errorf("unable to read the PPS list: %w", err)
	}
	return avcc, nil
}

// readParameterSets reads count 16-bit length-prefixed units following
// the count byte.
func readParameterSets(b []byte, count int) ([][]byte, []byte, error) {
	b = b[1:]
	var result [][]byte
	for i := 0; i < count; i++ {
		if len(b) < 2 {
			return nil, nil, fmt.Errorf("unit #%d: truncated length", i)
		}
		size := int(binary.BigEndian.Uint16(b))
		b = b[2:]
		if size > len(b) {
			return nil, nil, fmt.Errorf("unit #%d: %d bytes declared, %d available", i, size, len(b))
		}
		result = append(result, b[:size])
		b = b[size:]
	}
	return result, b, nil
}

// Bytes serializes the record.
func (c *H264AVCC) Bytes() []byte {
	lengthSize := c.NalLengthSize
	if lengthSize < 1 || lengthSize > 4 {
		lengthSize = 4
	}
	result := []byte{1, c.Profile, c.Compatibility, c.Level, 0xFC | byte(lengthSize-1), 0xE0 | byte(len(c.SPS))}
	for _, sps := range c.SPS {
		result = binary.BigEndian.AppendUint16(result, uint16(len(sps)))
		result = append(result, sps...)
	}
	result = append(result, byte(len(c.PPS)))
	for _, pps := range c.PPS {
		result = binary.BigEndian.AppendUint16(result, uint16(len(pps)))
		result = append(result, pps...)
	}
	return result
}

// AnnexB returns the parameter sets in the Annex-B form.
func (c *H264AVCC) AnnexB() []byte {
	return JoinAnnexB(append(append([][]byte{}, c.SPS...), c.PPS...))
}

func (c *H264AVCC) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "H.264 AVCDecoderConfigurationRecord\n")
	fmt.Fprintf(&sb, "  profile: 0x%02X, compatibility: 0x%02X, level: 0x%02X\n", c.Profile, c.Compatibility, c.Level)
	fmt.Fprintf(&sb, "  NAL length size: %d\n", c.NalLengthSize)
	for i, sps := range c.SPS {
		fmt.Fprintf(&sb, "  SPS[%d] %d bytes: % X\n", i, len(sps), preview(sps))
	}
	for i, pps := range c.PPS {
		fmt.Fprintf(&sb, "  PPS[%d] %d bytes: % X\n", i, len(pps), preview(pps))
	}
	return sb.String()
}
