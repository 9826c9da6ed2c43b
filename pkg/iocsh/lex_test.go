package iocsh

import (
	"testing"

	"github.com/ioctools/recwalk/pkg/tt"
)

func splitLineForTest(line string) (string, []string) {
	return splitLine(line)
}

func TestSplitLine(t *testing.T) {
	tt.Test(t, tt.Fn("splitLine", splitLineForTest), tt.Table{
		tt.Args("").Rets("", []string(nil)),
		tt.Args("   ").Rets("", []string(nil)),
		tt.Args("# comment only").Rets("", []string(nil)),
		tt.Args("iocInit").Rets("iocInit", []string(nil)),

		// C-call syntax.
		tt.Args(`dbLoadRecords("db/x.db", "P=A:")`).
			Rets("dbLoadRecords", []string{"db/x.db", "P=A:"}),
		tt.Args(`epicsEnvSet("P","LAB:")`).
			Rets("epicsEnvSet", []string{"P", "LAB:"}),
		tt.Args("pwd()").Rets("pwd", []string(nil)),

		// Token syntax.
		tt.Args("cd /ioc/app").Rets("cd", []string{"/ioc/app"}),
		tt.Args(`dbLoadRecords db/x.db "P=A:, R=1"`).
			Rets("dbLoadRecords", []string{"db/x.db", "P=A:, R=1"}),
		tt.Args("var  mySubDebug   1").Rets("var", []string{"mySubDebug", "1"}),

		// Comments after a command; '#' inside quotes survives.
		tt.Args("iocInit # start").Rets("iocInit", []string(nil)),
		tt.Args(`epicsEnvSet("C", "#5")`).Rets("epicsEnvSet", []string{"C", "#5"}),

		// Commas inside quotes do not split C-call arguments.
		tt.Args(`asSetSubstitutions("P=a,Q=b")`).
			Rets("asSetSubstitutions", []string{"P=a,Q=b"}),
	})
}

func TestStripComment(t *testing.T) {
	tt.Test(t, tt.Fn("stripComment", stripComment), tt.Table{
		tt.Args("a # b").Rets("a "),
		tt.Args(`"a # b"`).Rets(`"a # b"`),
		tt.Args("#").Rets(""),
		tt.Args("plain").Rets("plain"),
	})
}
