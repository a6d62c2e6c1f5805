package toolguards

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/optixconfigs"
	"github.com/reusee/optix/playbooks"
)

const (
	ModeCatalog          = "stackone"
	ModeCatalogDiscovery = "stackone_discovery"

	DefaultCatalogAPIKeyEnv = "STACKONE_API_KEY"
)

type CatalogFilter struct {
	AccountIDs []string
	Providers  []string
	Actions    []string
}

// Catalog is a remote source of tools.
type Catalog interface {
	Fetch(ctx context.Context, filter CatalogFilter) ([]Tool, error)
}

// OpenCatalog connects to a catalog. An empty baseURL means the default endpoint.
type OpenCatalog func(apiKey string, baseURL string) Catalog

// CatalogConfig is the tools block of a playbook as far as catalog loading is concerned.
type CatalogConfig struct {
	Mode  string
	Block playbooks.CatalogBlock
}

func CatalogConfigOf(spec *playbooks.Spec) CatalogConfig {
	return CatalogConfig{
		Mode:  spec.ToolsMode(),
		Block: spec.Program.Tools.Catalog,
	}
}

func (c CatalogConfig) catalogMode() bool {
	return c.Mode == ModeCatalog || c.Mode == ModeCatalogDiscovery
}

// Enabled reports whether catalog tools are requested.
func (c CatalogConfig) Enabled() bool {
	enabled := c.catalogMode()
	if c.Block.Enabled != nil {
		enabled = *c.Block.Enabled
	}
	if !enabled {
		return false
	}
	return c.catalogMode() || !isZeroBlock(c.Block)
}

func (c CatalogConfig) Discovery() bool {
	return c.Block.DiscoveryMode || c.Mode == ModeCatalogDiscovery
}

func isZeroBlock(b playbooks.CatalogBlock) bool {
	return b.Enabled == nil &&
		b.APIKeyEnv == "" &&
		len(b.AccountIDs) == 0 &&
		b.AccountIDsEnv == "" &&
		len(b.Providers) == 0 &&
		len(b.Actions) == 0 &&
		b.FallbackUnfiltered == nil &&
		b.BaseURL == "" &&
		!b.DiscoveryMode
}

// LoadCatalog fetches catalog tools and wraps them with guard.
// In strict mode a missing credential, a fetch failure or an empty result is an error; otherwise it yields no tools.
type LoadCatalog func(ctx context.Context, cfg CatalogConfig, guard *Guard) ([]Tool, error)

func (Module) LoadCatalog(
	env configs.Env,
	strict optixconfigs.ToolsStrict,
	open OpenCatalog,
	logger logs.Logger,
) LoadCatalog {
	return func(ctx context.Context, cfg CatalogConfig, guard *Guard) ([]Tool, error) {
		if !cfg.Enabled() {
			return nil, nil
		}

		fail := func(msg string) ([]Tool, error) {
			guard.Emit(Event{
				Stage:  StageCatalog,
				Detail: msg,
			})
			if strict {
				return nil, wrap(fmt.Errorf("%w: %s", ErrCatalog, msg))
			}
			logger.WarnContext(ctx, "catalog tools unavailable", "reason", msg)
			return nil, nil
		}

		keyEnv := strings.TrimSpace(cfg.Block.APIKeyEnv)
		if keyEnv == "" {
			keyEnv = DefaultCatalogAPIKeyEnv
		}
		apiKey := env(keyEnv)
		if apiKey == "" {
			return fail("missing env: " + keyEnv)
		}

		filter := CatalogFilter{
			AccountIDs: trimmed(cfg.Block.AccountIDs),
			Providers:  trimmed(cfg.Block.Providers),
			Actions:    trimmed(cfg.Block.Actions),
		}
		if name := strings.TrimSpace(cfg.Block.AccountIDsEnv); name != "" {
			filter.AccountIDs = append(filter.AccountIDs, trimmed(strings.Split(env(name), ","))...)
		}
		filter.AccountIDs = dedup(filter.AccountIDs)

		guard.Emit(Event{
			Stage:  StageCatalog,
			Detail: "initializing connection",
			Extra: map[string]any{
				"providers":         filter.Providers,
				"actions":           filter.Actions,
				"account_ids_count": len(filter.AccountIDs),
				"discovery_mode":    cfg.Discovery(),
			},
		})
		catalog := open(apiKey, strings.TrimSpace(cfg.Block.BaseURL))

		tools, err := catalog.Fetch(ctx, filter)
		if err != nil {
			return fail("tool loading failed: " + errorText(err))
		}
		guard.Emit(Event{
			Stage:  StageCatalog,
			Detail: fmt.Sprintf("fetched %d tools", len(tools)),
		})

		fallback := cfg.Block.FallbackUnfiltered == nil || *cfg.Block.FallbackUnfiltered
		if len(tools) == 0 && fallback && (len(filter.Providers) > 0 || len(filter.Actions) > 0) {
			guard.Emit(Event{
				Stage:  StageCatalog,
				Detail: "no tools from filters; retrying without provider/action filters",
			})
			tools, err = catalog.Fetch(ctx, CatalogFilter{
				AccountIDs: filter.AccountIDs,
			})
			if err != nil {
				return fail("tool loading failed: " + errorText(err))
			}
			guard.Emit(Event{
				Stage:  StageCatalog,
				Detail: fmt.Sprintf("fallback fetched %d tools", len(tools)),
			})
		}

		if len(tools) == 0 {
			return fail("fetched 0 tools")
		}

		tools = guard.Wrap(tools)
		if cfg.Discovery() {
			tools = Discovery(tools)
		}
		logger.InfoContext(ctx, "catalog tools loaded",
			"count", len(tools),
		)
		return tools, nil
	}
}

func trimmed(values []string) (ret []string) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			ret = append(ret, v)
		}
	}
	return
}

// dedup keeps the first occurrence of each value.
func dedup(values []string) (ret []string) {
	for _, v := range values {
		if !slices.Contains(ret, v) {
			ret = append(ret, v)
		}
	}
	return
}
