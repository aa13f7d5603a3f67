package qualify

import (
	"testing"

	"github.com/weaveai/weave/internal/models"
)

func budget(n float64) models.Value { return models.NumberValue(n) }

func TestQualify_Scenarios(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name string
		data models.EnquiryData
		want models.Verdict
		rule int
	}{
		{"A: high budget qualifies before timeline", models.EnquiryData{Budget: budget(15000), Timeline: "3-months", UseCase: "manufacturing"}, models.VerdictQualified, 1},
		{"B: low budget disqualifies", models.EnquiryData{Budget: budget(500)}, models.VerdictDisqualified, 0},
		{"C: immediate timeline escalates", models.EnquiryData{Budget: budget(5000), Timeline: "immediate"}, models.VerdictNeedsHuman, 2},
		{"enterprise use case", models.EnquiryData{UseCase: "Enterprise rollout"}, models.VerdictQualified, 3},
		{"nothing matches", models.EnquiryData{Budget: budget(5000), Timeline: "next year"}, models.VerdictNeedsHuman, -1},
		{"empty data", models.EnquiryData{}, models.VerdictNeedsHuman, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.data, rules)
			if d.Verdict != tt.want || d.RuleIndex != tt.rule {
				t.Errorf("got %s (rule %d), want %s (rule %d)", d.Verdict, d.RuleIndex, tt.want, tt.rule)
			}
			if Qualify(tt.data, rules) != tt.want {
				t.Error("Qualify disagrees with Evaluate")
			}
		})
	}
}

func TestQualify_FirstMatchWins(t *testing.T) {
	data := models.EnquiryData{Budget: budget(20000)}
	a := Rule{Field: "budget", Operator: OpGreaterThan, Value: models.NumberValue(100), Action: ActionEscalate}
	b := Rule{Field: "budget", Operator: OpGreaterThan, Value: models.NumberValue(10000), Action: ActionQualify}
	filler := Rule{Field: "timeline", Operator: OpEquals, Value: models.StringValue("never"), Action: ActionDisqualify}

	for _, rules := range [][]Rule{
		{a, b},
		{a, b, b, b},
		{filler, a, filler, b},
	} {
		if got := Qualify(data, rules); got != models.VerdictNeedsHuman {
			t.Errorf("rules %v: got %s", rules, got)
		}
	}
	if got := Qualify(data, []Rule{b, a}); got != models.VerdictQualified {
		t.Errorf("reversed order: got %s", got)
	}
}

func TestQualify_NoRules(t *testing.T) {
	if got := Qualify(models.EnquiryData{Budget: budget(1)}, nil); got != models.VerdictNeedsHuman {
		t.Errorf("got %s", got)
	}
}

func TestQualify_Pure(t *testing.T) {
	data := models.EnquiryData{Budget: budget(15000), Timeline: "immediate"}
	rules := DefaultRules()
	first := Evaluate(data, rules)
	for i := 0; i < 100; i++ {
		if d := Evaluate(data, rules); d.Verdict != first.Verdict || d.RuleIndex != first.RuleIndex {
			t.Fatalf("iteration %d: %+v != %+v", i, d, first)
		}
	}
}

func TestRule_Matches(t *testing.T) {
	data := models.EnquiryData{
		ProductInterest: "Cold Storage",
		Budget:          budget(2500),
		Timeline:        "immediate",
		Extra:           map[string]models.Value{
			"seats":  models.StringValue("40"),
			"region": models.StringValue("EU"),
			"notes":  models.StringValue("n/a"),
			"users":  models.NumberValue(120),
			"sso":    models.BoolValue(true),
		},
	}
	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{"equals string", Rule{Field: "timeline", Operator: OpEquals, Value: models.StringValue("immediate")}, true},
		{"equals is case sensitive", Rule{Field: "timeline", Operator: OpEquals, Value: models.StringValue("Immediate")}, false},
		{"equals number", Rule{Field: "budget", Operator: OpEquals, Value: models.NumberValue(2500)}, true},
		{"equals is strict across kinds", Rule{Field: "budget", Operator: OpEquals, Value: models.StringValue("2500")}, false},
		{"contains is case insensitive", Rule{Field: "product_interest", Operator: OpContains, Value: models.StringValue("storage")}, true},
		{"contains coerces numbers", Rule{Field: "budget", Operator: OpContains, Value: models.NumberValue(25)}, true},
		{"contains absent field", Rule{Field: "use_case", Operator: OpContains, Value: models.StringValue("")}, false},
		{"greater_than numeric string", Rule{Field: "seats", Operator: OpGreaterThan, Value: models.NumberValue(10)}, true},
		{"less_than", Rule{Field: "budget", Operator: OpLessThan, Value: models.StringValue("3000")}, true},
		{"greater_than numeric extra", Rule{Field: "users", Operator: OpGreaterThan, Value: models.NumberValue(100)}, true},
		{"equals bool extra", Rule{Field: "sso", Operator: OpEquals, Value: models.BoolValue(true)}, true},
		{"non-numeric field", Rule{Field: "notes", Operator: OpGreaterThan, Value: models.NumberValue(0)}, false},
		{"non-numeric rule value", Rule{Field: "budget", Operator: OpLessThan, Value: models.StringValue("lots")}, false},
		{"bool is not numeric", Rule{Field: "budget", Operator: OpGreaterThan, Value: models.BoolValue(true)}, false},
		{"unknown field", Rule{Field: "colour", Operator: OpEquals, Value: models.StringValue("red")}, false},
		{"unknown operator", Rule{Field: "timeline", Operator: "starts_with", Value: models.StringValue("imm")}, false},
		{"empty rule value", Rule{Field: "timeline", Operator: OpEquals}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(data); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_UnknownActionSkipped(t *testing.T) {
	data := models.EnquiryData{Timeline: "immediate"}
	rules := []Rule{
		{Field: "timeline", Operator: OpEquals, Value: models.StringValue("immediate"), Action: "archive"},
		{Field: "timeline", Operator: OpEquals, Value: models.StringValue("immediate"), Action: ActionQualify},
	}
	d := Evaluate(data, rules)
	if d.Verdict != models.VerdictQualified || d.RuleIndex != 1 {
		t.Errorf("got %+v", d)
	}
}

func TestDecision_Reason(t *testing.T) {
	d := Evaluate(models.EnquiryData{Timeline: "immediate"}, DefaultRules())
	if got := d.Reason(); got != "rule 3 matched: timeline equals immediate" {
		t.Errorf("Reason = %q", got)
	}
	if got := Evaluate(models.EnquiryData{}, nil).Reason(); got != "no qualification rule matched" {
		t.Errorf("Reason = %q", got)
	}
}

func TestDefaultRules_FreshCopy(t *testing.T) {
	a := DefaultRules()
	a[0].Action = ActionQualify
	if DefaultRules()[0].Action != ActionDisqualify {
		t.Error("DefaultRules shares state between calls")
	}
}
