package resolvers

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/vars"
)

type AdapterMode string

const (
	AdapterManual AdapterMode = "manual"
	AdapterAuto   AdapterMode = "auto"
)

const (
	AdapterChat    = "chat"
	AdapterJSON    = "json"
	AdapterXML     = "xml"
	AdapterTwoStep = "twostep"
)

// AdapterConfig is the merged adapter view. RetryOnParseError is never negative.
type AdapterConfig struct {
	Mode                  AdapterMode `json:"mode"`
	Type                  string      `json:"type"`
	FallbackAdapter       string      `json:"fallback_adapter"`
	NativeFunctionCalling bool        `json:"native_function_calling"`
	Strict                bool        `json:"strict"`
	RetryOnParseError     int         `json:"retry_on_parse_error"`
	ActiveModule          string      `json:"-"`
}

// RuntimeConfig is what a program reports about itself at run time.
type RuntimeConfig struct {
	Module  string
	Adapter map[string]any
}

// AdapterLayers returns the adapter layers in increasing precedence:
// the playbook default, the override for the active module, the program's runtime override.
func AdapterLayers(spec *playbooks.Spec, runtime RuntimeConfig) []map[string]any {
	activeModule := strings.ToLower(strings.TrimSpace(runtime.Module))
	target := vars.FirstNonZero(activeModule, spec.ModuleName())

	var moduleLayer map[string]any
	for _, module := range spec.Program.Modules {
		if strings.ToLower(strings.TrimSpace(module.Name)) == target && module.Adapter != nil {
			moduleLayer = module.Adapter
			break
		}
	}

	layers := []map[string]any{
		spec.Program.Adapter,
		moduleLayer,
		runtime.Adapter,
	}
	if target != "" {
		layers = append(layers, map[string]any{
			activeModuleKey: target,
		})
	}
	return layers
}

const activeModuleKey = "_active_module"

// HasAdapterSettings reports whether any layer carries a key. The active module hint counts,
// so a playbook naming only its module still gets the auto choice.
func HasAdapterSettings(layers []map[string]any) bool {
	for _, layer := range layers {
		if len(layer) > 0 {
			return true
		}
	}
	return false
}

// ResolveAdapter merges layers by dictionary union, later layers winning.
func ResolveAdapter(layers []map[string]any) AdapterConfig {
	merged := make(map[string]any)
	for _, layer := range layers {
		maps.Copy(merged, layer)
	}

	ret := AdapterConfig{
		Mode:              AdapterAuto,
		Type:              AdapterChat,
		FallbackAdapter:   AdapterChat,
		RetryOnParseError: 1,
	}
	if AdapterMode(lowerString(merged["mode"])) == AdapterManual {
		ret.Mode = AdapterManual
	}
	if t := lowerString(merged["type"]); t != "" {
		ret.Type = t
	}
	if t := lowerString(merged["fallback_adapter"]); t != "" {
		ret.FallbackAdapter = t
	}
	ret.NativeFunctionCalling = truthy(merged["native_function_calling"])
	ret.Strict = truthy(merged["strict"])
	if v, ok := merged["retry_on_parse_error"]; ok {
		ret.RetryOnParseError = toInt(v, 1)
	}
	ret.RetryOnParseError = max(0, ret.RetryOnParseError)
	ret.ActiveModule = lowerString(merged[activeModuleKey])
	return ret
}

// ChooseAdapterType picks the adapter type. Manual mode uses the configured type.
// Auto mode prefers chat for reactive or tool-using modules and json for multiple declared outputs.
func ChooseAdapterType(cfg AdapterConfig, spec *playbooks.Spec) string {
	if cfg.Mode != AdapterAuto {
		return cfg.Type
	}
	module := vars.FirstNonZero(cfg.ActiveModule, spec.ModuleName())
	switch spec.ToolsMode() {
	case "builtin", "mcp", "stackone", "stackone_discovery":
		return AdapterChat
	}
	if module == "react" {
		return AdapterChat
	}
	if spec.NumDeclaredOutputs() > 1 {
		return AdapterJSON
	}
	return AdapterChat
}

// ConfigureAdapter builds the chosen adapter, then the fallback.
// ok is false when both fail; callers keep the program default and go on.
func ConfigureAdapter[A any](
	cfg AdapterConfig,
	chosen string,
	build func(typ string, cfg AdapterConfig) (A, error),
) (adapter A, typ string, ok bool) {
	var err error
	adapter, err = build(chosen, cfg)
	if err == nil {
		return adapter, chosen, true
	}
	if cfg.FallbackAdapter == chosen {
		return adapter, "", false
	}
	adapter, err = build(cfg.FallbackAdapter, cfg)
	if err == nil {
		return adapter, cfg.FallbackAdapter, true
	}
	return adapter, "", false
}

func lowerString(v any) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return vars.StrToBool(v)
	case int:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

func toInt(v any, def int) int {
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	case nil:
		return 0
	}
	return def
}
