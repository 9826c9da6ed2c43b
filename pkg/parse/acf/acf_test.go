package acf

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ioctools/recwalk/pkg/parse"
	"github.com/ioctools/recwalk/pkg/testutil"
)

func parseText(t *testing.T, code string) *AccessConfig {
	t.Helper()
	f, err := Parse(parse.Source{Name: "security.acf", Code: testutil.Dedent(code)})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestParseAccessConfig(t *testing.T) {
	f := parseText(t, `
		UAG(ops) {operator1, operator2}
		UAG(experts) {guru}
		HAG(consoles) {con1, con2}

		ASG(DEFAULT) {
			RULE(1, READ)
		}
		ASG(CONTROLS) {
			INPA("X:mode")
			RULE(1, WRITE, TRAPWRITE) {
				UAG(ops, experts)
				HAG(consoles)
				CALC("A=1")
			}
		}
		`)
	if diff := cmp.Diff([]string{"operator1", "operator2"}, f.UserGroups["ops"]); diff != "" {
		t.Errorf("UAG ops (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"con1", "con2"}, f.HostGroups["consoles"]); diff != "" {
		t.Errorf("HAG consoles (-want +got):\n%s", diff)
	}

	controls := f.Groups["CONTROLS"]
	if controls == nil {
		t.Fatal("ASG CONTROLS missing")
	}
	if controls.Inputs["INPA"] != "X:mode" {
		t.Errorf("inputs = %v", controls.Inputs)
	}
	if len(controls.Rules) != 1 {
		t.Fatalf("rules = %v", controls.Rules)
	}
	rule := controls.Rules[0]
	if rule.Level != 1 || rule.Access != "WRITE" || rule.Trap != "TRAPWRITE" {
		t.Errorf("rule = %+v", rule)
	}
	if diff := cmp.Diff([]string{"ops", "experts"}, rule.UserGroups); diff != "" {
		t.Errorf("rule UAG (-want +got):\n%s", diff)
	}
	if rule.Calc != "A=1" {
		t.Errorf("calc = %q", rule.Calc)
	}

	// A RULE without a body applies to everyone.
	def := f.Groups["DEFAULT"].Rules[0]
	if def.Access != "READ" || len(def.UserGroups) != 0 {
		t.Errorf("default rule = %+v", def)
	}
}

func TestUnterminatedGroup(t *testing.T) {
	_, err := Parse(parse.Source{Name: "bad.acf", Code: "ASG(OOPS) {\n\tRULE(0, READ)\n"})
	if err == nil {
		t.Errorf("unterminated ASG produced no error")
	}
}
