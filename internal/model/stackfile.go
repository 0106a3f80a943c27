package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// stackFile is the on-disk shape of a stack definition (§6 "Stack
// definitions on disk"): three top-level keys, metadata/template/variables
// required, target_parameters and deployment_notes optional.
type stackFile struct {
	Metadata         StackMetadata           `yaml:"metadata"`
	Template         map[string]interface{}  `yaml:"template"`
	Variables        yaml.MapSlice           `yaml:"variables"`
	TargetParameters map[string]interface{}  `yaml:"target_parameters"`
	DeploymentNotes  string                  `yaml:"deployment_notes"`
}

// LoadStackFile parses a stack YAML file into a Stack, preserving the
// `variables` mapping's declaration order in VariableOrder per §9's fixed-
// order rendering rule (yaml.v2's MapSlice is the only way to recover
// mapping order from a YAML document; encoding/yaml v3's native map
// unmarshal loses it, which is why this package uses gopkg.in/yaml.v2
// rather than v3, matching the compose emitter's choice of the same
// library for the same reason).
func LoadStackFile(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read stack file: %w", err)
	}

	var raw stackFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("model: parse stack file: %w", err)
	}

	if raw.Metadata.Name == "" {
		return nil, fmt.Errorf("model: stack file %s missing metadata.name", path)
	}
	if raw.Metadata.TargetType == "" {
		return nil, fmt.Errorf("model: stack file %s missing metadata.target_type", path)
	}

	stack := &Stack{
		ID:               raw.Metadata.Name,
		TargetType:       raw.Metadata.TargetType,
		Template:         raw.Template,
		TargetParameters: raw.TargetParameters,
		DeploymentName:   raw.Metadata.DeploymentName,
		Version:          raw.Metadata.Version,
		Variables:        make(map[string]VariableSpec, len(raw.Variables)),
	}
	if stack.DeploymentName == "" {
		stack.DeploymentName = "windflow-{{ generate_uuid_short() }}"
	}

	for _, item := range raw.Variables {
		name, ok := item.Key.(string)
		if !ok {
			continue
		}
		specData, err := yaml.Marshal(item.Value)
		if err != nil {
			return nil, fmt.Errorf("model: variable %q: %w", name, err)
		}
		var spec VariableSpec
		if err := yaml.Unmarshal(specData, &spec); err != nil {
			return nil, fmt.Errorf("model: variable %q: %w", name, err)
		}
		stack.Variables[name] = spec
		stack.VariableOrder = append(stack.VariableOrder, name)
	}

	return stack, nil
}
