package router

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/mkarlsen/gatehouse/internal/metrics"
)

// DefaultConnectTimeout bounds dialing the upstream. Everything past the
// dial is left effectively unbounded so long-lived streams survive.
const DefaultConnectTimeout = 30 * time.Second

// idleTimeout keeps pooled upstream connections around for multi-day
// WebSocket and SSE sessions.
const idleTimeout = 48 * time.Hour

// newTransport builds the shared upstream transport. ResponseHeaderTimeout
// stays zero: an upstream that legitimately streams may take arbitrarily
// long before the first byte of a later chunk.
func newTransport(connectTimeout time.Duration) *http.Transport {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       idleTimeout,
		ResponseHeaderTimeout: 0,
		ForceAttemptHTTP2:     true,
	}
}

// newProxy builds the streaming reverse proxy for one upstream.
//
// FlushInterval -1 disables response buffering entirely, which is what keeps
// SSE chunks and WebSocket frames moving without delay. The inbound Host is
// preserved and X-Forwarded-For is appended rather than replaced, matching
// what upstreams behind a front proxy expect.
func newProxy(up Upstream, transport http.RoundTripper, label string) *httputil.ReverseProxy {
	target := &url.URL{Scheme: "http", Host: up.Addr}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = pr.In.Host
			setForwardedHeaders(pr)
		},
		Transport:     transport,
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			metrics.IncUpstreamError(label)
			slog.Warn("upstream error",
				"route", label, "upstream", up.Name, "addr", up.Addr,
				"path", r.URL.Path, "error", err)
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
	}
}

// setForwardedHeaders writes the X-Forwarded-* trio on the outbound request.
// Built by hand instead of SetXForwarded: the stdlib helper drops
// X-Forwarded-For whenever RemoteAddr lacks a port, and it replaces the
// inbound list instead of extending it. Here any prior hops are kept and the
// connection peer is appended after them.
func setForwardedHeaders(pr *httputil.ProxyRequest) {
	peer := pr.In.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if peer != "" {
		xff := peer
		if prior := pr.In.Header.Values("X-Forwarded-For"); len(prior) > 0 {
			xff = strings.Join(prior, ", ") + ", " + peer
		}
		pr.Out.Header.Set("X-Forwarded-For", xff)
	}
	pr.Out.Header.Set("X-Forwarded-Host", pr.In.Host)
	proto := "http"
	if pr.In.TLS != nil {
		proto = "https"
	}
	pr.Out.Header.Set("X-Forwarded-Proto", proto)
}
