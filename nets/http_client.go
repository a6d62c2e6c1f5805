package nets

import (
	"net"
	"net/http"
	"net/url"
)

type HTTPClient = *http.Client

func (Module) HTTPClient(
	dialer Dialer,
	getProxyURL GetProxyURL,
	isLocalAddr IsLocalAddr,
) HTTPClient {
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 8,
	}
	if u, err := getProxyURL(); err == nil && u != nil && (u.Scheme == "http" || u.Scheme == "https") {
		// HTTP proxies speak CONNECT, not the dialer protocol
		transport.Proxy = proxyFunc(u, isLocalAddr)
		transport.DialContext = (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: dialKeepAlive,
		}).DialContext
	}
	return &http.Client{
		Transport: transport,
	}
}

// proxyFunc sends requests for local hosts, such as an ollama server, around the proxy.
func proxyFunc(proxyURL *url.URL, isLocalAddr IsLocalAddr) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		local, err := isLocalAddr(req.URL.Host)
		if err != nil {
			return nil, err
		}
		if local {
			return nil, nil
		}
		return proxyURL, nil
	}
}
