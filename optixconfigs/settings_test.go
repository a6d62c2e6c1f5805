package optixconfigs

import (
	"testing"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/modes"
)

func TestTimeouts(t *testing.T) {
	loader := configs.NewLoaderFromSources([]configs.Source{
		{Name: "optix.cue", Content: []byte(`tool_timeout_sec: 5`)},
	}, schema)

	dscope.New(
		new(Module),
		modes.ForTest(t),
	).Fork(
		func() configs.Loader {
			return loader
		},
		func() configs.Env {
			return configs.MapEnv(map[string]string{
				ProgramTimeoutEnv: "0",
			})
		},
	).Call(func(
		programTimeout ProgramTimeout,
		toolTimeout ToolTimeout,
	) {
		if programTimeout != 0 {
			t.Fatalf("got %v", programTimeout)
		}
		if time.Duration(toolTimeout) != 5*time.Second {
			t.Fatalf("got %v", toolTimeout)
		}
	})
}

func TestResolveTimeout(t *testing.T) {
	configured := 7.0
	cases := []struct {
		flag       time.Duration
		env        string
		configured *float64
		want       time.Duration
	}{
		{unsetTimeout, "", nil, DefaultProgramTimeout},
		{unsetTimeout, "1.5", nil, 1500 * time.Millisecond},
		{unsetTimeout, "nope", nil, DefaultProgramTimeout},
		{unsetTimeout, "nope", &configured, 7 * time.Second},
		{time.Second, "3", &configured, time.Second},
		{unsetTimeout, "-1", nil, -time.Second},
		// an explicit zero flag disables the deadline over env and config
		{0, "3", &configured, 0},
	}
	for _, c := range cases {
		got := resolveTimeout(c.flag, c.env, c.configured, DefaultProgramTimeout)
		if got != c.want {
			t.Fatalf("%+v: got %v", c, got)
		}
	}

	if *programTimeoutFlag != unsetTimeout || *toolTimeoutFlag != unsetTimeout {
		t.Fatalf("got %v %v", *programTimeoutFlag, *toolTimeoutFlag)
	}
}

func TestToolsStrict(t *testing.T) {
	loader := configs.NewLoaderFromSources(nil, schema)
	for env, want := range map[string]ToolsStrict{
		"":      true,
		"0":     false,
		"off":   false,
		"TRUE":  true,
		"bogus": true,
	} {
		dscope.New(
			new(Module),
			modes.ForTest(t),
		).Fork(
			func() configs.Loader {
				return loader
			},
			func() configs.Env {
				return configs.MapEnv(map[string]string{
					ToolsStrictEnv: env,
				})
			},
		).Call(func(strict ToolsStrict) {
			if strict != want {
				t.Fatalf("%q: got %v", env, strict)
			}
		})
	}
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	if paths := findFiles([]string{dir}); len(paths) != 0 {
		t.Fatalf("got %v", paths)
	}
}
