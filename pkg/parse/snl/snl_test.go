package snl

import (
	"testing"

	"github.com/ioctools/recwalk/pkg/parse"
	"github.com/ioctools/recwalk/pkg/testutil"
)

func TestParseHeader(t *testing.T) {
	p, err := Parse(parse.Source{Name: "ramp.st", Code: testutil.Dedent(`
		program ramp("unit=1")

		option +r;

		double setpoint;
		assign setpoint to "X:setpoint";
		monitor setpoint;

		double readback;
		assign readback to "X:temp.VAL";

		ss ramp_control {
			state low {
				when (readback > 10.0) {
				} state high
			}
		}
		`)})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "ramp" || p.Params != "unit=1" {
		t.Errorf("program = %q %q", p.Name, p.Params)
	}
	if len(p.Options) != 1 {
		t.Errorf("options = %v", p.Options)
	}
	if len(p.Assignments) != 2 {
		t.Fatalf("assignments = %v", p.Assignments)
	}
	if a := p.Assignments[0]; a.Variable != "setpoint" || a.PV != "X:setpoint" {
		t.Errorf("assignment 0 = %+v", a)
	}
	if len(p.Monitored) != 1 || p.Monitored[0] != "setpoint" {
		t.Errorf("monitored = %v", p.Monitored)
	}
}

func TestStopsAtStateSet(t *testing.T) {
	p, err := Parse(parse.Source{Name: "x.st", Code: testutil.Dedent(`
		program x
		ss main {
		}
		assign ignored to "X:ignored";
		`)})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Assignments) != 0 {
		t.Errorf("declarations after the first state set were parsed: %v", p.Assignments)
	}
}
