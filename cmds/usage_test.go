package cmds

import (
	"bytes"
	"strings"
	"testing"
)

func TestUsage(t *testing.T) {
	executor := NewExecutor()
	buf := new(bytes.Buffer)
	executor.output = buf
	executor.Define("foo", Sub(map[string]*Command{
		"bar": Func(func() {
		}).Desc("BAR"),
		"baz": Sub(map[string]*Command{
			"qux": Func(func() {}).Desc("QUX"),
		}).Desc("BAZ"),
	}).Desc("FOO"))
	executor.PrintUsage()

	out := buf.String()
	for _, want := range []string{
		"foo\tFOO",
		"  bar\tBAR",
		"    qux\tQUX",
		"-h, help, -help, --help\tprint this usage",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("got %q", out)
		}
	}
}
