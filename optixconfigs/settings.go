package optixconfigs

import (
	"path/filepath"
	"time"

	"github.com/reusee/optix/cmds"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/vars"
)

const ToolsStrictEnv = "OPTIX_TOOLS_STRICT"

// ToolsStrict makes tool catalog failures fatal instead of yielding no tools.
type ToolsStrict bool

func (Module) ToolsStrict(
	loader configs.Loader,
	env configs.Env,
) ToolsStrict {
	if v, ok := vars.ParseBool(env(ToolsStrictEnv)); ok {
		return ToolsStrict(v)
	}
	if v := configs.First[*bool](loader, "tools_strict"); v != nil {
		return ToolsStrict(*v)
	}
	return true
}

// AgentsDir holds one directory per agent, each with its playbook and pipelines/.
type AgentsDir string

var agentsDirFlag = cmds.Var[string]("-agents-dir", "directory holding one directory per agent")

func (Module) AgentsDir(
	loader configs.Loader,
) AgentsDir {
	dir := vars.FirstNonZero(
		*agentsDirFlag,
		configs.First[string](loader, "agents_dir"),
		"agents",
	)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return AgentsDir(dir)
}

// FeedbackWindow is how long per-session feedback timestamps are kept.
type FeedbackWindow time.Duration

func (Module) FeedbackWindow(
	loader configs.Loader,
) FeedbackWindow {
	if secs := configs.First[float64](loader, "feedback_window_sec"); secs > 0 {
		return FeedbackWindow(seconds(secs))
	}
	return FeedbackWindow(time.Hour)
}
