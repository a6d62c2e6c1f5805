package nets

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/logs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Logs    logs.Module
}
