// Package progtest provides utilities for testing subprograms.
package progtest

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/ioctools/recwalk/pkg/must"
	"github.com/ioctools/recwalk/pkg/prog"
)

// Output captures the outcome of one subprogram invocation.
type Output struct {
	Exit   int
	Stdout string
	Stderr string
}

// Run runs p like a main function would, with stdout and stderr captured.
// The leading "recwalk" argv element is supplied here.
func Run(t *testing.T, p prog.Program, args ...string) Output {
	t.Helper()
	r1, w1 := must.Pipe()
	r2, w2 := must.Pipe()
	devNull := must.OK1(os.Open(os.DevNull))
	defer devNull.Close()

	exit := prog.Run([3]*os.File{devNull, w1, w2}, append([]string{"recwalk"}, args...), p)
	w1.Close()
	w2.Close()
	return Output{
		Exit:   exit,
		Stdout: string(must.OK1(io.ReadAll(r1))),
		Stderr: string(must.OK1(io.ReadAll(r2))),
	}
}

// ContainsLine reports whether any line of s equals line.
func ContainsLine(s, line string) bool {
	for _, l := range strings.Split(s, "\n") {
		if l == line {
			return true
		}
	}
	return false
}
