package toolguards

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/optixconfigs"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/vars"
)

type fakeCatalog struct {
	tools   []Tool
	filters []CatalogFilter
}

func (f *fakeCatalog) Fetch(ctx context.Context, filter CatalogFilter) (ret []Tool, err error) {
	f.filters = append(f.filters, filter)
	for _, tool := range f.tools {
		if matchFilter(tool.Name, filter) {
			ret = append(ret, tool)
		}
	}
	return
}

func loadCatalog(t *testing.T, env map[string]string, strict bool, catalog *fakeCatalog, cfg CatalogConfig) ([]Tool, *recorder, error) {
	rec := new(recorder)
	var tools []Tool
	var err error
	newTestScope(t,
		func() configs.Env {
			return configs.MapEnv(env)
		},
		func() optixconfigs.ToolsStrict {
			return optixconfigs.ToolsStrict(strict)
		},
		func() OpenCatalog {
			return func(apiKey string, baseURL string) Catalog {
				if apiKey != "key" {
					t.Fatalf("got %s", apiKey)
				}
				return catalog
			}
		},
	).Call(func(
		newGuard NewGuard,
		load LoadCatalog,
	) {
		tools, err = load(t.Context(), cfg, newGuard(rec.emit))
	})
	return tools, rec, err
}

func hrisTools() []Tool {
	noop := func(ctx context.Context, args map[string]any) (any, error) {
		return args, nil
	}
	return []Tool{
		{Name: "hris_list_employees", Description: "List employees", Call: noop},
		{Name: "hris_get_employee", Description: "Get one employee", Call: noop},
		{Name: "ats_list_jobs", Description: "List open jobs", Call: noop},
	}
}

func TestLoadCatalogDisabled(t *testing.T) {
	tools, _, err := loadCatalog(t, nil, true, &fakeCatalog{}, CatalogConfig{
		Mode: "builtin",
	})
	if err != nil || tools != nil {
		t.Fatalf("got %v %v", tools, err)
	}
	tools, _, err = loadCatalog(t, nil, true, &fakeCatalog{}, CatalogConfig{
		Mode: ModeCatalog,
		Block: playbooks.CatalogBlock{
			Enabled: vars.PtrTo(false),
		},
	})
	if err != nil || tools != nil {
		t.Fatalf("got %v %v", tools, err)
	}
}

func TestLoadCatalogMissingKey(t *testing.T) {
	cfg := CatalogConfig{
		Mode: ModeCatalog,
	}
	_, _, err := loadCatalog(t, nil, true, &fakeCatalog{}, cfg)
	if !errors.Is(err, ErrCatalog) {
		t.Fatalf("got %v", err)
	}
	tools, rec, err := loadCatalog(t, nil, false, &fakeCatalog{}, cfg)
	if err != nil || tools != nil {
		t.Fatalf("got %v %v", tools, err)
	}
	if rec.events[0].Detail != "missing env: "+DefaultCatalogAPIKeyEnv {
		t.Fatalf("got %+v", rec.events)
	}
}

func TestLoadCatalogFilters(t *testing.T) {
	catalog := &fakeCatalog{
		tools: hrisTools(),
	}
	tools, _, err := loadCatalog(t, map[string]string{
		"MY_KEY":      "key",
		"MY_ACCOUNTS": "b, a ,,c",
	}, true, catalog, CatalogConfig{
		Mode: ModeCatalog,
		Block: playbooks.CatalogBlock{
			APIKeyEnv:     "MY_KEY",
			AccountIDs:    []string{"a", " "},
			AccountIDsEnv: "MY_ACCOUNTS",
			Providers:     []string{"hris"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 2 {
		t.Fatalf("got %v", tools)
	}
	if got := catalog.filters[0].AccountIDs; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %v", got)
	}
}

func TestLoadCatalogFallback(t *testing.T) {
	catalog := &fakeCatalog{
		tools: hrisTools(),
	}
	env := map[string]string{
		DefaultCatalogAPIKeyEnv: "key",
	}
	tools, rec, err := loadCatalog(t, env, true, catalog, CatalogConfig{
		Mode: ModeCatalog,
		Block: playbooks.CatalogBlock{
			Providers: []string{"crm"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 3 || len(catalog.filters) != 2 {
		t.Fatalf("got %v %v", tools, catalog.filters)
	}
	found := false
	for _, ev := range rec.events {
		if ev.Detail == "fallback fetched 3 tools" {
			found = true
		}
	}
	if !found {
		t.Fatalf("got %+v", rec.events)
	}

	catalog = &fakeCatalog{
		tools: hrisTools(),
	}
	_, _, err = loadCatalog(t, env, true, catalog, CatalogConfig{
		Mode: ModeCatalog,
		Block: playbooks.CatalogBlock{
			Providers:          []string{"crm"},
			FallbackUnfiltered: vars.PtrTo(false),
		},
	})
	if !errors.Is(err, ErrCatalog) {
		t.Fatalf("got %v", err)
	}
}

func TestLoadCatalogDiscovery(t *testing.T) {
	tools, rec, err := loadCatalog(t, map[string]string{
		DefaultCatalogAPIKeyEnv: "key",
	}, true, &fakeCatalog{
		tools: hrisTools(),
	}, CatalogConfig{
		Mode: ModeCatalogDiscovery,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 2 || tools[0].Name != SearchToolName || tools[1].Name != ExecuteToolName {
		t.Fatalf("got %v", tools)
	}

	out, err := tools[1].Call(t.Context(), map[string]any{
		"tool_name": "hris_get_employee",
		"arguments": `{"id": "42"}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.(map[string]any)["id"] != "42" {
		t.Fatalf("got %v", out)
	}
	// inner calls are guarded
	last := rec.events[len(rec.events)-1]
	if last.Stage != StageOK || last.Detail != "hris_get_employee" {
		t.Fatalf("got %+v", last)
	}
}

func TestMCPCatalog(t *testing.T) {
	var accounts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mcp" {
			t.Errorf("got %s", r.URL.Path)
		}
		if user, _, ok := r.BasicAuth(); !ok || user != "key" {
			t.Errorf("got %v", user)
		}
		var req rpcRequest
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		req.Params = &params
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "tools/list":
			accounts = append(accounts, r.Header.Get("x-account-id"))
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"tools":[
				{"name":"hris_list_employees","description":"List employees","inputSchema":{"type":"object","properties":{"page_size":{"type":"integer"},"cursor":{"type":"string"}}}},
				{"name":"ats_list_jobs","description":"List jobs","inputSchema":{"type":"object"}}
			]}}`))
		case "tools/call":
			if params.Name == "ats_list_jobs" {
				w.Write([]byte(`{"jsonrpc":"2.0","id":2,"result":{"isError":true,"content":[{"type":"text","text":"forbidden"}]}}`))
				return
			}
			body, _ := json.Marshal(map[string]any{
				"jsonrpc": "2.0",
				"id":      2,
				"result": map[string]any{
					"content": []map[string]any{
						{"type": "text", "text": "called " + params.Name},
					},
				},
			})
			w.Write(body)
		default:
			w.Write([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"method not found"}}`))
		}
	}))
	defer server.Close()

	newTestScope(t).Call(func(
		open OpenCatalog,
	) {
		catalog := open("key", server.URL)
		tools, err := catalog.Fetch(t.Context(), CatalogFilter{
			AccountIDs: []string{"acc1"},
			Actions:    []string{"*_list_*"},
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(tools) != 2 {
			t.Fatalf("got %v", tools)
		}
		if len(accounts) != 1 || accounts[0] != "acc1" {
			t.Fatalf("got %v", accounts)
		}
		if p := tools[0].Params; len(p) != 2 || p[0] != "page_size" || p[1] != "cursor" {
			t.Fatalf("got %v", p)
		}
		out, err := tools[0].Call(t.Context(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if out != "called hris_list_employees" {
			t.Fatalf("got %v", out)
		}
		if _, err := tools[1].Call(t.Context(), nil); err == nil {
			t.Fatal()
		}
	})
}

func TestMatchFilter(t *testing.T) {
	cases := []struct {
		name   string
		filter CatalogFilter
		want   bool
	}{
		{"hris_list_employees", CatalogFilter{}, true},
		{"hris_list_employees", CatalogFilter{Providers: []string{"HRIS"}}, true},
		{"hris_list_employees", CatalogFilter{Providers: []string{"ats"}}, false},
		{"hris_list_employees", CatalogFilter{Actions: []string{"hris_get_*"}}, false},
		{"hris_list_employees", CatalogFilter{Actions: []string{"hris_get_*", "*_employees"}}, true},
	}
	for _, c := range cases {
		if got := matchFilter(c.name, c.filter); got != c.want {
			t.Fatalf("%+v: got %v", c, got)
		}
	}
}

