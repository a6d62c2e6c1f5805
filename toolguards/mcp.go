package toolguards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync/atomic"

	"github.com/invopop/jsonschema"
	"github.com/reusee/optix/nets"
)

const DefaultCatalogBaseURL = "https://api.stackone.com"

// MCPCatalog lists and calls tools of a remote MCP server over JSON-RPC on HTTP.
// Tools are listed once per account; provider and action filters apply to tool names.
type MCPCatalog struct {
	client  *http.Client
	url     string
	apiKey  string
	request atomic.Int64
}

var _ Catalog = new(MCPCatalog)

func (Module) OpenCatalog(
	client nets.HTTPClient,
) OpenCatalog {
	return func(apiKey string, baseURL string) Catalog {
		if baseURL == "" {
			baseURL = DefaultCatalogBaseURL
		}
		return &MCPCatalog{
			client: client,
			url:    strings.TrimSuffix(baseURL, "/") + "/mcp",
			apiKey: apiKey,
		}
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", r.Code, r.Message)
}

type mcpTool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type mcpCallResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError"`
}

func (m *MCPCatalog) Fetch(ctx context.Context, filter CatalogFilter) (ret []Tool, err error) {
	accounts := filter.AccountIDs
	if len(accounts) == 0 {
		accounts = []string{""}
	}
	for _, account := range accounts {
		var listed struct {
			Tools []mcpTool `json:"tools"`
		}
		if err := m.call(ctx, account, "tools/list", nil, &listed); err != nil {
			return nil, err
		}
		for _, def := range listed.Tools {
			if !matchFilter(def.Name, filter) {
				continue
			}
			ret = append(ret, m.tool(def, account))
		}
	}
	return ret, nil
}

func (m *MCPCatalog) tool(def mcpTool, account string) Tool {
	name := def.Name
	return Tool{
		Name:        name,
		Description: def.Description,
		Params:      SchemaParams(def.InputSchema),
		Call: func(ctx context.Context, args map[string]any) (any, error) {
			if args == nil {
				args = map[string]any{}
			}
			var result mcpCallResult
			if err := m.call(ctx, account, "tools/call", map[string]any{
				"name":      name,
				"arguments": args,
			}, &result); err != nil {
				return nil, err
			}
			var texts []string
			for _, content := range result.Content {
				if content.Type == "text" {
					texts = append(texts, content.Text)
				}
			}
			text := strings.Join(texts, "\n")
			if result.IsError {
				return nil, wrap(fmt.Errorf("tool %s: %s", name, text))
			}
			return text, nil
		},
	}
}

func (m *MCPCatalog) call(ctx context.Context, account string, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      m.request.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return wrap(err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", m.url, bytes.NewReader(body))
	if err != nil {
		return wrap(err)
	}
	req.SetBasicAuth(m.apiKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if account != "" {
		req.Header.Set("x-account-id", account)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return wrap(err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return wrap(fmt.Errorf("%s: bad status: %d, body: %s", method, resp.StatusCode, respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return wrap(err)
	}
	if rpcResp.Error != nil {
		return wrap(rpcResp.Error)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return wrap(err)
	}
	return nil
}

// matchFilter checks a tool name against provider prefixes and action glob patterns.
func matchFilter(name string, filter CatalogFilter) bool {
	if len(filter.Providers) > 0 {
		provider, _, _ := strings.Cut(name, "_")
		matched := false
		for _, p := range filter.Providers {
			if strings.EqualFold(p, provider) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(filter.Actions) > 0 {
		for _, pattern := range filter.Actions {
			if ok, _ := path.Match(pattern, name); ok {
				return true
			}
		}
		return false
	}
	return true
}
