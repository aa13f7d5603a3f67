// Package qualify evaluates ordered qualification rules against enquiry data.
//
// Evaluation is pure: rules are tried in list order, the first match decides the verdict,
// and no match yields needs_human. Missing fields and values that cannot be compared
// are non-matches, never errors.
package qualify

import (
	"fmt"
	"strings"

	"github.com/weaveai/weave/internal/models"
)

// Operator compares an enquiry field to a rule value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpContains, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// Action is what a matching rule does to the verdict.
type Action string

const (
	ActionQualify    Action = "qualify"
	ActionDisqualify Action = "disqualify"
	ActionEscalate   Action = "escalate"
)

// Verdict maps the action to a verdict. Unknown actions report false.
func (a Action) Verdict() (models.Verdict, bool) {
	switch a {
	case ActionQualify:
		return models.VerdictQualified, true
	case ActionDisqualify:
		return models.VerdictDisqualified, true
	case ActionEscalate:
		return models.VerdictNeedsHuman, true
	}
	return "", false
}

// Rule is one qualification condition and the action taken when it holds.
type Rule struct {
	Field    string       `json:"field" yaml:"field"`
	Operator Operator     `json:"operator" yaml:"operator"`
	Value    models.Value `json:"value" yaml:"-"`
	Action   Action       `json:"action" yaml:"action"`
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s %s", r.Field, r.Operator, r.Value.Text())
}

// Matches reports whether the rule condition holds for data.
func (r Rule) Matches(data models.EnquiryData) bool {
	field, ok := data.Lookup(r.Field)
	if !ok || r.Value.Kind == models.KindNone {
		return false
	}
	switch r.Operator {
	case OpEquals:
		return field.Equal(r.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(field.Text()), strings.ToLower(r.Value.Text()))
	case OpGreaterThan, OpLessThan:
		a, okA := field.Float()
		b, okB := r.Value.Float()
		if !okA || !okB {
			return false
		}
		if r.Operator == OpGreaterThan {
			return a > b
		}
		return a < b
	}
	return false
}

// Decision is a verdict plus the rule that produced it. RuleIndex is -1 when no rule matched.
type Decision struct {
	Verdict   models.Verdict `json:"verdict"`
	RuleIndex int            `json:"rule_index"`
	Rule      *Rule          `json:"rule,omitempty"`
}

// Matched reports whether a rule decided the verdict.
func (d Decision) Matched() bool {
	return d.RuleIndex >= 0
}

// Reason is a human-readable explanation of the verdict.
func (d Decision) Reason() string {
	if !d.Matched() {
		return "no qualification rule matched"
	}
	return fmt.Sprintf("rule %d matched: %s", d.RuleIndex+1, d.Rule)
}

// Evaluate applies rules in order and returns the first match's decision.
// A rule whose action is unknown is skipped as a non-match.
func Evaluate(data models.EnquiryData, rules []Rule) Decision {
	for i := range rules {
		r := rules[i]
		if !r.Matches(data) {
			continue
		}
		verdict, ok := r.Action.Verdict()
		if !ok {
			continue
		}
		return Decision{Verdict: verdict, RuleIndex: i, Rule: &r}
	}
	return Decision{Verdict: models.VerdictNeedsHuman, RuleIndex: -1}
}

// Qualify returns only the verdict of Evaluate.
func Qualify(data models.EnquiryData, rules []Rule) models.Verdict {
	return Evaluate(data, rules).Verdict
}

// DefaultRules returns a fresh copy of the built-in rule set for high-consideration products.
func DefaultRules() []Rule {
	return []Rule{
		{Field: "budget", Operator: OpLessThan, Value: models.NumberValue(1000), Action: ActionDisqualify},
		{Field: "budget", Operator: OpGreaterThan, Value: models.NumberValue(10000), Action: ActionQualify},
		{Field: "timeline", Operator: OpEquals, Value: models.StringValue("immediate"), Action: ActionEscalate},
		{Field: "use_case", Operator: OpContains, Value: models.StringValue("enterprise"), Action: ActionQualify},
	}
}
