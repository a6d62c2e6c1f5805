package feedbacks

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/optixconfigs"
)

type Module struct {
	dscope.Module
	Configs optixconfigs.Module
}
