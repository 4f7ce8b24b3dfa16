package rules

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// ruleAlias drops Rule's methods so the decoders below do not recurse.
type ruleAlias Rule

// UnmarshalJSON implements json.Unmarshaler. Rules are enabled unless the
// document disables them explicitly.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var alias ruleAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var probe struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Enabled == nil {
		alias.Enabled = true
	}

	*r = Rule(alias)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Rules are enabled unless the
// document disables them explicitly.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var alias ruleAlias
	if err := node.Decode(&alias); err != nil {
		return err
	}
	if !hasMappingKey(node, "enabled") {
		alias.Enabled = true
	}

	*r = Rule(alias)
	return nil
}

func hasMappingKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
