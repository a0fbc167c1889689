package effect

import (
	"fmt"
	"strings"
)

// Config describes an effect in a configuration file.
type Config struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

func (cfg Config) float(key string, defaultValue float64) (float64, error) {
	v, ok := cfg.Params[key]
	if !ok {
		return defaultValue, nil
	}
	switch v := v.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("parameter '%s' of effect '%s' must be a number, but is %T", key, cfg.Type, v)
	}
}

func (cfg Config) string(key string, defaultValue string) (string, error) {
	v, ok := cfg.Params[key]
	if !ok {
		return defaultValue, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' of effect '%s' must be a string, but is %T", key, cfg.Type, v)
	}
	return s, nil
}

func (cfg Config) floats(keys []string, defaults []float64) ([]float64, error) {
	result := make([]float64, len(keys))
	for idx, key := range keys {
		v, err := cfg.float(key, defaults[idx])
		if err != nil {
			return nil, err
		}
		result[idx] = v
	}
	return result, nil
}

// FromConfig builds the effect described by cfg.
func FromConfig(cfg Config) (Effect, error) {
	switch strings.ToLower(cfg.Type) {
	case "scale_and_rotate":
		v, err := cfg.floats([]string{"scale_x", "scale_y", "rotation_degrees"}, []float64{1, 1, 0})
		if err != nil {
			return nil, err
		}
		return NewScaleAndRotate(v[0], v[1], v[2]), nil
	case "rotation":
		degrees, err := cfg.float("degrees", 0)
		if err != nil {
			return nil, err
		}
		return NewRotation(degrees), nil
	case "presentation":
		v, err := cfg.floats([]string{"height", "aspect_ratio"}, []float64{0, 0})
		if err != nil {
			return nil, err
		}
		layoutName, err := cfg.string("layout", LayoutScaleToFit.String())
		if err != nil {
			return nil, err
		}
		layout, err := ParseLayout(layoutName)
		if err != nil {
			return nil, err
		}
		return NewPresentationWithAspectRatio(int(v[0]), v[1], layout), nil
	case "crop":
		v, err := cfg.floats([]string{"left", "right", "bottom", "top"}, []float64{-1, 1, -1, 1})
		if err != nil {
			return nil, err
		}
		return NewCrop(v[0], v[1], v[2], v[3]), nil
	case "brightness":
		v, err := cfg.float("value", 0)
		if err != nil {
			return nil, err
		}
		return NewBrightness(v), nil
	case "contrast":
		v, err := cfg.float("value", 0)
		if err != nil {
			return nil, err
		}
		return NewContrast(v), nil
	case "brightness_contrast":
		v, err := cfg.floats([]string{"brightness", "contrast"}, []float64{0, 0})
		if err != nil {
			return nil, err
		}
		return NewBrightnessContrast(v[0], v[1]), nil
	case "saturation":
		v, err := cfg.float("value", 0)
		if err != nil {
			return nil, err
		}
		return NewSaturation(v), nil
	case "gamma":
		v, err := cfg.float("value", 1)
		if err != nil {
			return nil, err
		}
		return NewGamma(v), nil
	case "gaussian_blur":
		v, err := cfg.float("radius", 1)
		if err != nil {
			return nil, err
		}
		return NewGaussianBlur(v), nil
	case "grayscale":
		return NewGrayscale(), nil
	case "sepia":
		return NewSepia(), nil
	}
	return nil, fmt.Errorf("unknown effect type '%s'", cfg.Type)
}

// FromConfigs builds the effects in order.
func FromConfigs(cfgs []Config) ([]Effect, error) {
	result := make([]Effect, 0, len(cfgs))
	for idx, cfg := range cfgs {
		e, err := FromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("effect #%d: %w", idx, err)
		}
		result = append(result, e)
	}
	return result, nil
}
