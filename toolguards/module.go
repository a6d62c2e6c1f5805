package toolguards

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/debugs"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/nets"
	"github.com/reusee/optix/optixconfigs"
)

type Module struct {
	dscope.Module
	Configs optixconfigs.Module
	Nets    nets.Module
	Debugs  debugs.Module
	Logs    logs.Module
}
