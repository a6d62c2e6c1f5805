package optixconfigs

import (
	"strconv"
	"strings"
	"time"

	"github.com/reusee/optix/cmds"
	"github.com/reusee/optix/configs"
)

const (
	DefaultProgramTimeout = 120 * time.Second
	DefaultToolTimeout    = 20 * time.Second

	ProgramTimeoutEnv = "OPTIX_PROGRAM_TIMEOUT_SEC"
	ToolTimeoutEnv    = "OPTIX_TOOL_TIMEOUT_SEC"
)

// ProgramTimeout bounds one program invocation. Non-positive means no deadline.
type ProgramTimeout time.Duration

// ToolTimeout bounds one tool call. Non-positive means no deadline.
type ToolTimeout time.Duration

// unsetTimeout marks a timeout flag that was not given. Zero is a real value meaning no deadline.
const unsetTimeout time.Duration = -1

var (
	programTimeoutFlag = timeoutFlag("-program-timeout", "program deadline in seconds or as a duration, 0 for none")
	toolTimeoutFlag    = timeoutFlag("-tool-timeout", "tool call deadline in seconds or as a duration, 0 for none")
)

func timeoutFlag(name string, desc string) *time.Duration {
	ret := cmds.Var[time.Duration](name, desc)
	*ret = unsetTimeout
	return ret
}

func (Module) ProgramTimeout(
	loader configs.Loader,
	env configs.Env,
) ProgramTimeout {
	return ProgramTimeout(resolveTimeout(
		*programTimeoutFlag,
		env(ProgramTimeoutEnv),
		configs.First[*float64](loader, "program_timeout_sec"),
		DefaultProgramTimeout,
	))
}

func (Module) ToolTimeout(
	loader configs.Loader,
	env configs.Env,
) ToolTimeout {
	return ToolTimeout(resolveTimeout(
		*toolTimeoutFlag,
		env(ToolTimeoutEnv),
		configs.First[*float64](loader, "tool_timeout_sec"),
		DefaultToolTimeout,
	))
}

func resolveTimeout(flag time.Duration, envValue string, configured *float64, def time.Duration) time.Duration {
	if flag != unsetTimeout {
		return flag
	}
	if envValue = strings.TrimSpace(envValue); envValue != "" {
		if secs, err := strconv.ParseFloat(envValue, 64); err == nil {
			return seconds(secs)
		}
		// unparsable values fall through
	}
	if configured != nil {
		return seconds(*configured)
	}
	return def
}

func seconds(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
