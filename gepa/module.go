package gepa

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/logs"
)

type Module struct {
	dscope.Module
	Lms  lms.Module
	Logs logs.Module
}
