package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// Route forwards requests under Prefix to Upstream with the prefix removed.
type Route struct {
	Prefix   string
	Upstream string
	// APIKey, when set, replaces the inbound Authorization header with a
	// Bearer credential so clients never hold the provider secret.
	APIKey string
}

type HandlerOptions struct {
	Transport http.RoundTripper
}

func NewHandler(routes []Route, logger *slog.Logger, next http.Handler) (http.Handler, error) {
	return NewHandlerWithOptions(routes, logger, next, HandlerOptions{})
}

func NewHandlerWithOptions(routes []Route, logger *slog.Logger, next http.Handler, options HandlerOptions) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if next == nil {
		next = http.NotFoundHandler()
	}

	normalized := make([]Route, 0, len(routes))
	proxies := make(map[string]http.Handler, len(routes))
	for _, route := range routes {
		route.Prefix = normalizePrefix(route.Prefix)
		handler, err := buildProxyHandler(route, logger, options.Transport)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, route)
		proxies[route.Prefix] = handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, route := range normalized {
			if hasPathPrefix(r.URL.Path, route.Prefix) {
				proxies[route.Prefix].ServeHTTP(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	}), nil
}

func buildProxyHandler(route Route, logger *slog.Logger, transport http.RoundTripper) (http.Handler, error) {
	target, err := url.Parse(route.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream for %q: %w", route.Prefix, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream for %q: %q", route.Prefix, route.Upstream)
	}

	prefix := route.Prefix
	apiKey := route.APIKey
	proxy := httputil.NewSingleHostReverseProxy(target)
	if transport != nil {
		proxy.Transport = transport
	}
	baseDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		req.URL.Path = stripPathPrefix(req.URL.Path, prefix)
		baseDirector(req)
		req.Host = target.Host
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, proxyErr error) {
		logger.Error("proxy request failed", "route_prefix", prefix, "path", req.URL.Path, "error", proxyErr)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
	}

	return proxy, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if prefix != "/" {
		prefix = strings.TrimRight(prefix, "/")
	}
	return prefix
}

func hasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func stripPathPrefix(path, prefix string) string {
	if prefix == "/" || !hasPathPrefix(path, prefix) {
		return path
	}
	stripped := path[len(prefix):]
	if stripped == "" {
		return "/"
	}
	return stripped
}
