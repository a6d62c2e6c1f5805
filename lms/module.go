package lms

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/debugs"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/nets"
)

type Module struct {
	dscope.Module
	Nets   nets.Module
	Logs   logs.Module
	Debugs debugs.Module
}
