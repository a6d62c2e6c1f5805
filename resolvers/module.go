package resolvers

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/cmds"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/optixconfigs"
)

type Module struct {
	dscope.Module
	Configs optixconfigs.Module
}

var (
	modelFlag    = cmds.Var[string]("-model", "task model override")
	providerFlag = cmds.Var[string]("-provider", "provider override")
	localFlag    = cmds.Switch("-local", "force a local model")
	cloudFlag    = cmds.Switch("-cloud", "force a cloud model")
)

func (Module) Overrides() Overrides {
	return Overrides{
		Model:    *modelFlag,
		Provider: *providerFlag,
		Local:    *localFlag,
		Cloud:    *cloudFlag,
	}
}

func (Module) Resolver(
	env configs.Env,
	loader configs.Loader,
) Resolver {
	return Resolver{
		Env:     env,
		APIKeys: configs.MergedMap[string](loader, "api_keys"),
		Defaults: Defaults{
			TaskModel:         configs.First[string](loader, "task_model"),
			TeacherModel:      configs.First[string](loader, "teacher_model"),
			CloudTaskModel:    configs.First[string](loader, "cloud_task_model"),
			CloudTeacherModel: configs.First[string](loader, "cloud_teacher_model"),
			OllamaBaseURL:     configs.First[string](loader, "ollama_base_url"),
		},
	}
}
