package programs

import (
	"reflect"
	"sync"
)

// Capabilities records which optional interfaces a program implements. Absent ones are nil.
type Capabilities struct {
	LMSetter                LMSetter
	RuntimeConfigurer       RuntimeConfigurer
	PredictionValidator     PredictionValidator
	PredictionPostprocessor PredictionPostprocessor
	CompileFlagger          CompileFlagger
	OptimizationConfigurer  OptimizationConfigurer
	AssertionConfigurer     AssertionConfigurer
}

type capability uint8

const (
	capLMSetter capability = 1 << iota
	capRuntimeConfigurer
	capPredictionValidator
	capPredictionPostprocessor
	capCompileFlagger
	capOptimizationConfigurer
	capAssertionConfigurer
)

// reflect.Type -> capability
var probed sync.Map

// Probe reports the optional interfaces of p. Method sets are inspected once per dynamic type.
func Probe(p Program) (ret Capabilities) {
	if p == nil {
		return
	}
	t := reflect.TypeOf(p)
	var caps capability
	if v, ok := probed.Load(t); ok {
		caps = v.(capability)
	} else {
		caps = capabilitiesOf(p)
		probed.Store(t, caps)
	}

	if caps&capLMSetter != 0 {
		ret.LMSetter = p.(LMSetter)
	}
	if caps&capRuntimeConfigurer != 0 {
		ret.RuntimeConfigurer = p.(RuntimeConfigurer)
	}
	if caps&capPredictionValidator != 0 {
		ret.PredictionValidator = p.(PredictionValidator)
	}
	if caps&capPredictionPostprocessor != 0 {
		ret.PredictionPostprocessor = p.(PredictionPostprocessor)
	}
	if caps&capCompileFlagger != 0 {
		ret.CompileFlagger = p.(CompileFlagger)
	}
	if caps&capOptimizationConfigurer != 0 {
		ret.OptimizationConfigurer = p.(OptimizationConfigurer)
	}
	if caps&capAssertionConfigurer != 0 {
		ret.AssertionConfigurer = p.(AssertionConfigurer)
	}
	return
}

func capabilitiesOf(p Program) (ret capability) {
	if _, ok := p.(LMSetter); ok {
		ret |= capLMSetter
	}
	if _, ok := p.(RuntimeConfigurer); ok {
		ret |= capRuntimeConfigurer
	}
	if _, ok := p.(PredictionValidator); ok {
		ret |= capPredictionValidator
	}
	if _, ok := p.(PredictionPostprocessor); ok {
		ret |= capPredictionPostprocessor
	}
	if _, ok := p.(CompileFlagger); ok {
		ret |= capCompileFlagger
	}
	if _, ok := p.(OptimizationConfigurer); ok {
		ret |= capOptimizationConfigurer
	}
	if _, ok := p.(AssertionConfigurer); ok {
		ret |= capAssertionConfigurer
	}
	return
}
