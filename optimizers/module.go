package optimizers

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/gepa"
	"github.com/reusee/optix/runners"
)

type Module struct {
	dscope.Module
	Runners runners.Module
	Gepa    gepa.Module
}
