package runners

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/debugs"
	"github.com/reusee/optix/feedbacks"
	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/resolvers"
	"github.com/reusee/optix/toolguards"
)

type Module struct {
	dscope.Module
	Resolvers  resolvers.Module
	Lms        lms.Module
	Toolguards toolguards.Module
	Programs   programs.Module
	Feedbacks  feedbacks.Module
	Logs       logs.Module
	Debugs     debugs.Module
}
