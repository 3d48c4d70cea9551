package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// decodeInto decodes a parsed YAML map into a typed config struct. Decoding
// follows yaml tags, coerces scalar types weakly (so "${TIMEOUT:60}"
// substitutions decode into ints) and squashes embedded structs.
func decodeInto(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	return decoder.Decode(input)
}

// toMap renders a config struct as a plain map by round-tripping it through
// YAML, keeping the export format identical to the load format.
func toMap(cfg any) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// stripSensitive removes credential fields from an exported config map.
func stripSensitive(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, item := range v {
			if key == "api_key" {
				delete(v, key)
				continue
			}
			v[key] = stripSensitive(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = stripSensitive(item)
		}
		return v
	default:
		return value
	}
}
