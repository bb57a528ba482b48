package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Weights mirrors pad.Weights with YAML tags.
type Weights struct {
	Texture float64 `yaml:"texture"`
	Freq    float64 `yaml:"freq"`
	Motion  float64 `yaml:"motion"`
	RPPG    float64 `yaml:"rppg"`
}

var weightKeys = map[string]bool{"texture": true, "freq": true, "motion": true, "rppg": true}

// UnmarshalYAML starts from zero weights so that channels omitted in the file
// contribute nothing, and rejects channel names it does not know.
func (w *Weights) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fusion.weights must be a mapping", value.Line)
	}
	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i]
		if !weightKeys[key.Value] {
			return fmt.Errorf("line %d: field %s not found in type config.Weights", key.Line, key.Value)
		}
	}

	type plain Weights
	var out plain
	if err := value.Decode(&out); err != nil {
		return err
	}
	*w = Weights(out)
	return nil
}
