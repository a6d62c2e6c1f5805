package nets

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/modes"
)

func TestIsLocalAddr(t *testing.T) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	).Call(func(
		isLocalAddr IsLocalAddr,
	) {
		for addr, want := range map[string]bool{
			"127.0.0.1:11434": true,
			"localhost:11434": true,
			"[::1]:8080":      true,
			"10.0.0.2":        true,
			"192.168.1.1:80":  true,
			"8.8.8.8:443":     false,
		} {
			got, err := isLocalAddr(addr)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Fatalf("%s: got %v", addr, got)
			}
		}
	})
}

func TestHTTPClientInDevelopment(t *testing.T) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	).Call(func(
		addr ProxyAddr,
		client HTTPClient,
	) {
		if addr != "" {
			t.Fatalf("got %v", addr)
		}
		if client == nil {
			t.Fatal()
		}
	})
}

func TestProxyFuncBypassesLocal(t *testing.T) {
	proxyURL, err := url.Parse("http://proxy.example.com:3128")
	if err != nil {
		t.Fatal(err)
	}
	isLocal := func(addr string) (bool, error) {
		return strings.HasPrefix(addr, "127.0.0.1"), nil
	}
	fn := proxyFunc(proxyURL, isLocal)

	req, err := http.NewRequest("POST", "http://127.0.0.1:11434/v1/chat/completions", nil)
	if err != nil {
		t.Fatal(err)
	}
	if u, err := fn(req); err != nil || u != nil {
		t.Fatalf("got %v %v", u, err)
	}

	req, err = http.NewRequest("POST", "https://api.openai.com/v1/chat/completions", nil)
	if err != nil {
		t.Fatal(err)
	}
	if u, err := fn(req); err != nil || u != proxyURL {
		t.Fatalf("got %v %v", u, err)
	}
}
