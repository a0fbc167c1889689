package quality

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
)

type ConstantBitrate uint

func (ConstantBitrate) typeName() string {
	return "constant_bitrate"
}

func (vq ConstantBitrate) String() string {
	return humanize.SI(float64(vq), "bps")
}

func (vq ConstantBitrate) Apply(target Target) {
	target.SetBitrate(int(vq))
}

func (vq ConstantBitrate) MarshalJSON() ([]byte, error) {
	return json.Marshal(qualitySerializable{
		"type":    vq.typeName(),
		"bitrate": uint(vq),
	})
}

func (vq *ConstantBitrate) setValues(in qualitySerializable) error {
	bitrate, ok := in["bitrate"].(float64)
	if !ok {
		return fmt.Errorf("have not found float64 value using key 'bitrate' in %#+v", in)
	}

	*vq = ConstantBitrate(bitrate)
	return nil
}
