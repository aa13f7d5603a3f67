package qualify

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/weaveai/weave/internal/models"
)

// ruleFile is the on-disk shape:
//
//	rules:
//	  - field: budget
//	    operator: less_than
//	    value: 1000
//	    action: disqualify
type ruleFile struct {
	Rules []rawRule `yaml:"rules"`
}

type rawRule struct {
	Field    string    `yaml:"field"`
	Operator Operator  `yaml:"operator"`
	Value    yaml.Node `yaml:"value"`
	Action   Action    `yaml:"action"`
}

// LoadRules reads a YAML rule file. A missing file, an empty list, or a rule with an
// unknown operator or action is a *models.ConfigError.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ConfigError{Msg: "read rule file", Err: err}
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rule set.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &models.ConfigError{Msg: "parse rule file", Err: err}
	}
	if len(f.Rules) == 0 {
		return nil, &models.ConfigError{Msg: "rule set is empty"}
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, raw := range f.Rules {
		if raw.Field == "" {
			return nil, &models.ConfigError{Msg: fmt.Sprintf("rule %d: field is required", i+1)}
		}
		if !raw.Operator.Valid() {
			return nil, &models.ConfigError{Msg: fmt.Sprintf("rule %d: unknown operator %q", i+1, raw.Operator)}
		}
		if _, ok := raw.Action.Verdict(); !ok {
			return nil, &models.ConfigError{Msg: fmt.Sprintf("rule %d: unknown action %q", i+1, raw.Action)}
		}
		v, err := nodeValue(&raw.Value)
		if err != nil {
			return nil, &models.ConfigError{Msg: fmt.Sprintf("rule %d: value", i+1), Err: err}
		}
		rules = append(rules, Rule{Field: raw.Field, Operator: raw.Operator, Value: v, Action: raw.Action})
	}
	return rules, nil
}

// nodeValue keeps the YAML scalar type: 1000 is a number, "1000" and immediate are strings.
func nodeValue(n *yaml.Node) (models.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return models.Value{}, fmt.Errorf("must be a scalar")
	}
	switch n.Tag {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			var x float64
			if derr := n.Decode(&x); derr != nil {
				return models.Value{}, derr
			}
			f = x
		}
		return models.NumberValue(f), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return models.Value{}, err
		}
		return models.BoolValue(b), nil
	case "!!null":
		return models.Value{}, fmt.Errorf("is required")
	}
	return models.StringValue(n.Value), nil
}

// MarshalRules encodes rules in the file format accepted by ParseRules.
func MarshalRules(rules []Rule) ([]byte, error) {
	type outRule struct {
		Field    string      `yaml:"field"`
		Operator Operator    `yaml:"operator"`
		Value    interface{} `yaml:"value"`
		Action   Action      `yaml:"action"`
	}
	out := struct {
		Rules []outRule `yaml:"rules"`
	}{}
	for _, r := range rules {
		var v interface{}
		switch r.Value.Kind {
		case models.KindNumber:
			v = r.Value.Num
		case models.KindBool:
			v = r.Value.Bool
		default:
			v = r.Value.Str
		}
		out.Rules = append(out.Rules, outRule{r.Field, r.Operator, v, r.Action})
	}
	return yaml.Marshal(out)
}
