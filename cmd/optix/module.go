package main

import (
	"github.com/reusee/dscope"
	"github.com/reusee/optix/optimizers"
	"github.com/reusee/optix/optixconfigs"
)

type Module struct {
	dscope.Module
	Optimizers optimizers.Module
	Configs    optixconfigs.Module
}
