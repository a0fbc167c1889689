package codec

import (
	"fmt"
)

type ColorTransfer int

const (
	ColorTransferUndefined = ColorTransfer(iota)
	ColorTransferSDR
	ColorTransferLinear
	ColorTransferST2084
	ColorTransferHLG
)

func (t ColorTransfer) String() string {
	switch t {
	case ColorTransferUndefined:
		return "undefined"
	case ColorTransferSDR:
		return "sdr"
	case ColorTransferLinear:
		return "linear"
	case ColorTransferST2084:
		return "st2084"
	case ColorTransferHLG:
		return "hlg"
	}
	return fmt.Sprintf("ColorTransfer(%d)", int(t))
}

type ColorStandard int

const (
	ColorStandardUndefined = ColorStandard(iota)
	ColorStandardBT709
	ColorStandardBT601
	ColorStandardBT2020
)

func (s ColorStandard) String() string {
	switch s {
	case ColorStandardUndefined:
		return "undefined"
	case ColorStandardBT709:
		return "bt709"
	case ColorStandardBT601:
		return "bt601"
	case ColorStandardBT2020:
		return "bt2020"
	}
	return fmt.Sprintf("ColorStandard(%d)", int(s))
}

type ColorRange int

const (
	ColorRangeUndefined = ColorRange(iota)
	ColorRangeLimited
	ColorRangeFull
)

func (r ColorRange) String() string {
	switch r {
	case ColorRangeUndefined:
		return "undefined"
	case ColorRangeLimited:
		return "limited"
	case ColorRangeFull:
		return "full"
	}
	return fmt.Sprintf("ColorRange(%d)", int(r))
}

type ColorInfo struct {
	Transfer ColorTransfer
	Standard ColorStandard
	Range    ColorRange
}

var (
	ColorInfoSDRBT709Limited = ColorInfo{
		Transfer: ColorTransferSDR,
		Standard: ColorStandardBT709,
		Range:    ColorRangeLimited,
	}
)

// IsHDR returns true if the transfer function is an HDR one.
func (c ColorInfo) IsHDR() bool {
	return c.Transfer == ColorTransferST2084 || c.Transfer == ColorTransferHLG
}

func (c ColorInfo) IsSet() bool {
	return c != ColorInfo{}
}

func (c ColorInfo) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Standard, c.Transfer, c.Range)
}
