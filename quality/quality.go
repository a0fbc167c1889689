// Package quality describes the desired quality of an encoded stream.
package quality

import (
	"encoding/json"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

type Quality interface {
	fmt.Stringer
	typeName() string
	Apply(Target)
}

// Target is something an encoding quality can be applied to
// (e.g. codec.Format).
type Target interface {
	SetBitrate(bitsPerSecond int)
	SetConstantQuality(quality int)
}

type valueSetter interface {
	setValues(vq qualitySerializable) error
}

type qualitySerializable map[string]any

func (vq qualitySerializable) Convert() (Quality, error) {
	typeName, ok := vq["type"].(string)
	if !ok {
		return nil, fmt.Errorf("field 'type' is not set")
	}

	var r Quality
	for _, sample := range []Quality{
		ptr(ConstantBitrate(0)),
		ptr(ConstantQuality(0)),
	} {
		if sample.typeName() == typeName {
			r = sample
			break
		}
	}
	if r == nil {
		return nil, fmt.Errorf("unknown type '%s'", typeName)
	}

	if err := r.(valueSetter).setValues(vq); err != nil {
		return nil, fmt.Errorf("unable to convert the value: %w", err)
	}
	return reflect.ValueOf(r).Elem().Interface().(Quality), nil
}

// Serializable wraps a Quality to make it (un)marshalable from JSON and YAML
// configs, e.g.:
//
//	video_quality:
//	  type: constant_bitrate
//	  bitrate: 2000000
type Serializable struct {
	Quality
}

var (
	_ json.Unmarshaler = (*Serializable)(nil)
	_ yaml.Unmarshaler = (*Serializable)(nil)
)

func (s Serializable) MarshalJSON() ([]byte, error) {
	if s.Quality == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Quality)
}

func (s *Serializable) UnmarshalJSON(b []byte) error {
	var m qualitySerializable
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("unable to unmarshal '%s': %w", b, err)
	}
	return s.fromMap(m)
}

func (s *Serializable) UnmarshalYAML(node *yaml.Node) error {
	var m qualitySerializable
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("unable to decode the quality: %w", err)
	}
	return s.fromMap(m)
}

func (s *Serializable) fromMap(m qualitySerializable) error {
	if m == nil {
		s.Quality = nil
		return nil
	}
	// YAML decodes integers as int, JSON as float64; normalize to float64.
	for k, v := range m {
		switch v := v.(type) {
		case int:
			m[k] = float64(v)
		case int64:
			m[k] = float64(v)
		case uint64:
			m[k] = float64(v)
		}
	}
	q, err := m.Convert()
	if err != nil {
		return err
	}
	s.Quality = q
	return nil
}
