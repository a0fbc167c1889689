package extradata

import (
	"fmt"
	"strings"
)

type H265NalUnitType uint8

const (
	H265NalUnitTypeIDRWRADL  H265NalUnitType = 19
	H265NalUnitTypeIDRNLP    H265NalUnitType = 20
	H265NalUnitTypeCRA       H265NalUnitType = 21
	H265NalUnitTypeVPS       H265NalUnitType = 32
	H265NalUnitTypeSPS       H265NalUnitType = 33
	H265NalUnitTypePPS       H265NalUnitType = 34
	H265NalUnitTypeAUD       H265NalUnitType = 35
	H265NalUnitTypeEOS       H265NalUnitType = 36
	H265NalUnitTypeEOB       H265NalUnitType = 37
	H265NalUnitTypeFiller    H265NalUnitType = 38
	H265NalUnitTypePrefixSEI H265NalUnitType = 39
	H265NalUnitTypeSuffixSEI H265NalUnitType = 40
)

func H265NALUType(nalu []byte) H265NalUnitType {
	if len(nalu) == 0 {
		return 0
	}
	return H265NalUnitType((nalu[0] >> 1) & 0x3F)
}

func (t H265NalUnitType) String() string {
	switch t {
	case H265NalUnitTypeIDRWRADL, H265NalUnitTypeIDRNLP:
		return "IDR slice"
	case H265NalUnitTypeCRA:
		return "CRA slice"
	case H265NalUnitTypeVPS:
		return "VPS"
	case H265NalUnitTypeSPS:
		return "SPS"
	case H265NalUnitTypePPS:
		return "PPS"
	case H265NalUnitTypeAUD:
		return "AUD"
	case H265NalUnitTypeFiller:
		return "filler"
	case H265NalUnitTypePrefixSEI, H265NalUnitTypeSuffixSEI:
		return "SEI"
	default:
		return fmt.Sprintf("type %d", uint8(t))
	}
}

type H265AnnexB struct {
	NALUs [][]byte
}

func ParseH265AnnexB(b []byte) (*H265AnnexB, error) {
	if !IsAnnexB(b) {
		return nil, fmt.Errorf("the data does not start with a start code")
	}
	var nalus [][]byte
	for _, nalu := range SplitAnnexB(b) {
		// the H.265 NAL unit header is two bytes long
		if len(nalu) >= 2 {
			nalus = append(nalus, nalu)
		}
	}
	if len(nalus) == 0 {
		return nil, fmt.Errorf("no NAL units found")
	}
	return &H265AnnexB{NALUs: nalus}, nil
}

func (s *H265AnnexB) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "H.265 Annex-B (%d NAL units)\n", len(s.NALUs))
	for i, nalu := range s.NALUs {
		fmt.Fprintf(&sb, "  [%d] %s, %d bytes: % X\n", i, H265NALUType(nalu), len(nalu), preview(nalu))
	}
	return sb.String()
}
