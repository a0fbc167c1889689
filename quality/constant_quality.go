package quality

import (
	"encoding/json"
	"fmt"
)

type ConstantQuality uint8

func (ConstantQuality) typeName() string {
	return "constant_quality"
}

func (vq ConstantQuality) String() string {
	return fmt.Sprintf("CQ%d", uint8(vq))
}

func (vq ConstantQuality) Apply(target Target) {
	target.SetConstantQuality(int(vq))
}

func (vq ConstantQuality) MarshalJSON() ([]byte, error) {
	return json.Marshal(qualitySerializable{
		"type":    vq.typeName(),
		"quality": uint(vq),
	})
}

func (vq *ConstantQuality) setValues(in qualitySerializable) error {
	q, ok := in["quality"].(float64)
	if !ok {
		return fmt.Errorf("have not found float64 value using key 'quality' in %#+v", in)
	}

	*vq = ConstantQuality(q)
	return nil
}
