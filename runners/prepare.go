package runners

import (
	"context"

	"github.com/reusee/optix/adapters"
	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/resolvers"
	"github.com/reusee/optix/toolguards"
	"github.com/reusee/optix/vars"
)

type PrepareOptions struct {
	Overrides resolvers.Overrides
	// Tools are added to the playbook's builtin and catalog tools.
	Tools []toolguards.Tool
	// Emit receives tool trace events. Nil logs them at debug level.
	Emit toolguards.Emitter
}

// Prepared is a built program with everything it was built from.
type Prepared struct {
	Params      resolvers.RuntimeParams
	Caps        programs.Capabilities
	Settings    programs.Settings
	Handle      programs.Handle
	AdapterType string
	Guard       *toolguards.Guard
}

// Prepare resolves the task model, configures the adapter and tools, and builds the program.
type Prepare func(ctx context.Context, spec *playbooks.Spec, program programs.Program, options PrepareOptions) (*Prepared, error)

func (Module) Prepare(
	resolver resolvers.Resolver,
	newLM lms.New,
	newGuard toolguards.NewGuard,
	builtins toolguards.Builtins,
	loadCatalog toolguards.LoadCatalog,
	logger logs.Logger,
) Prepare {
	return func(ctx context.Context, spec *playbooks.Spec, program programs.Program, options PrepareOptions) (*Prepared, error) {
		ret := &Prepared{
			Caps: programs.Probe(program),
		}
		ret.Settings.Spec = spec

		var flags resolvers.CompileFlags
		if ret.Caps.CompileFlagger != nil {
			flags = ret.Caps.CompileFlagger.CompileFlags()
		}
		overrides := options.Overrides
		overrides.Provider = vars.FirstNonZero(overrides.Provider, flags.ProviderOverride)
		overrides.Model = vars.FirstNonZero(overrides.Model, flags.ModelOverride)

		params, err := resolver.Resolve(spec, overrides, resolvers.PurposeTask, flags)
		if err != nil {
			return nil, err
		}
		ret.Params = params

		if ret.Caps.LMSetter != nil {
			if err := ret.Caps.LMSetter.SetupLM(params); err != nil {
				return nil, wrap(err)
			}
		} else {
			lm, err := newLM(params)
			if err != nil {
				return nil, err
			}
			ret.Settings.LM = lm
		}

		var runtime resolvers.RuntimeConfig
		if ret.Caps.RuntimeConfigurer != nil {
			runtime = ret.Caps.RuntimeConfigurer.RuntimeConfig()
		}
		layers := resolvers.AdapterLayers(spec, runtime)
		if resolvers.HasAdapterSettings(layers) {
			cfg := resolvers.ResolveAdapter(layers)
			chosen := resolvers.ChooseAdapterType(cfg, spec)
			adapter, typ, ok := resolvers.ConfigureAdapter(cfg, chosen, buildAdapter)
			if ok {
				ret.Settings.Adapter = adapter
				ret.AdapterType = typ
			} else {
				logger.WarnContext(ctx, "adapter configuration skipped",
					"chosen", chosen,
					"fallback", cfg.FallbackAdapter,
				)
			}
		}

		ret.Guard = newGuard(options.Emit)
		tools := builtins(spec.Program.Tools.Builtin)
		catalogTools, err := loadCatalog(ctx, toolguards.CatalogConfigOf(spec), ret.Guard)
		if err != nil {
			return nil, err
		}
		tools = append(tools, options.Tools...)
		ret.Settings.Tools = append(ret.Guard.Wrap(tools), catalogTools...)

		handle, err := program.BuildProgram(ret.Settings)
		if err != nil {
			return nil, wrap(err)
		}
		ret.Handle = handle

		logger.InfoContext(ctx, "program prepared",
			"model", params.ModelName,
			"provider", params.Provider,
			"adapter", ret.AdapterType,
			"tools", len(ret.Settings.Tools),
		)
		return ret, nil
	}
}

func buildAdapter(typ string, cfg resolvers.AdapterConfig) (adapters.Adapter, error) {
	return adapters.New(typ, adapters.Options{
		NativeFunctionCalling: cfg.NativeFunctionCalling,
		Strict:                cfg.Strict,
		RetryOnParseError:     cfg.RetryOnParseError,
	})
}
