package logs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/reusee/dscope"
)

func TestNewSpan(t *testing.T) {
	buf := new(bytes.Buffer)
	dscope.New(new(Module)).Fork(
		func() Writer {
			return buf
		},
	).Call(func(
		newSpan NewSpan,
	) {
		runCtx, run := newSpan(t.Context(), "", "agent", "adder", "op", "run")
		phaseCtx, phase := newSpan(runCtx, "", "phase", "invocation")
		_, tool := newSpan(phaseCtx, run, "tool", "calculator")

		if SpanFrom(phaseCtx) != phase {
			t.Fatalf("got %v", SpanFrom(phaseCtx))
		}

		lines := strings.Split(buf.String(), "\n")
		if len(lines) < 3 {
			t.Fatalf("got %q", buf.String())
		}
		for _, c := range []struct {
			line int
			want []string
		}{
			{0, []string{"logs.span=" + string(run), "agent=adder", "op=run"}},
			{1, []string{"logs.span=" + string(phase), "parent=" + string(run), "phase=invocation"}},
			// explicit parent differs from the span in ctx
			{2, []string{"logs.span=" + string(tool), "parent=" + string(run), "creator=" + string(phase)}},
		} {
			for _, want := range c.want {
				if !strings.Contains(lines[c.line], want) {
					t.Fatalf("line %d: got %v", c.line, lines[c.line])
				}
			}
		}
		if strings.Contains(lines[0], "parent=") {
			t.Fatalf("got %v", lines[0])
		}
	})
}
