package nets

import (
	"net"
	"net/url"
	"sync"

	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/modes"
	"github.com/reusee/optix/vars"
	"golang.org/x/net/proxy"
)

// ProxyAddr is the upstream proxy for model provider traffic. Local endpoints bypass it.
type ProxyAddr string

func (Module) ProxyAddr(
	mode modes.Mode,
	loader configs.Loader,
	env configs.Env,
	logger logs.Logger,
) (ret ProxyAddr) {
	defer func() {
		if ret != "" {
			logger.Info("proxy", "addr", ret)
		}
	}()

	if mode == modes.ModeDevelopment {
		return ""
	}

	return vars.FirstNonZero(
		configs.First[ProxyAddr](loader, "proxy"),
		ProxyAddr(env("OPTIX_PROXY")),
		ProxyAddr(env("ALL_PROXY")),
		ProxyAddr(env("all_proxy")),
		ProxyAddr(env("HTTPS_PROXY")),
		ProxyAddr(env("https_proxy")),
		ProxyAddr(env("HTTP_PROXY")),
		ProxyAddr(env("http_proxy")),
	)
}

type GetProxyURL func() (*url.URL, error)

func (Module) GetProxyURL(
	proxyAddr ProxyAddr,
) GetProxyURL {
	return sync.OnceValues(func() (*url.URL, error) {
		if proxyAddr == "" {
			return nil, nil
		}
		u, err := url.Parse(string(proxyAddr))
		if err != nil {
			return nil, err
		}
		if u.Scheme == "socks" {
			u.Scheme = "socks5"
		}
		return u, nil
	})
}

type GetProxyDialer func() (Dialer, error)

func (Module) GetProxyDialer(
	getURL GetProxyURL,
) GetProxyDialer {
	direct := any(&net.Dialer{}).(Dialer)
	return sync.OnceValues(func() (Dialer, error) {
		u, err := getURL()
		if err != nil {
			return nil, err
		}
		if u != nil {
			var proxyDialer proxy.Dialer
			proxyDialer, err = proxy.FromURL(u, direct)
			if err != nil {
				return nil, err
			}
			return proxyDialer.(Dialer), nil
		}
		return direct, nil
	})
}
