package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mkarlsen/gatehouse/internal/metrics"
)

// Options configures the router process.
type Options struct {
	Listen            string
	ConnectTimeout    time.Duration
	ClientAddrHeaders []string
	Upstreams         []Upstream
	Routes            []Route
}

// Server dispatches inbound requests across the route table. Each proxying
// route gets its own reverse proxy so errors are attributed to the route that
// matched; the routes share one upstream transport. Static routes serve the
// filesystem directly.
type Server struct {
	opts        Options
	table       *Table
	handlers    []http.Handler
	addrHeaders []string
	mux         *chi.Mux
	httpSrv     *http.Server
}

// New validates the table, resolves every route to its handler and wires the
// chi mux. The table is fixed for the life of the server.
func New(opts Options) (*Server, error) {
	table, err := NewTable(opts.Routes)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Upstream, len(opts.Upstreams))
	for _, up := range opts.Upstreams {
		if up.Name == "" || up.Addr == "" {
			return nil, fmt.Errorf("upstream requires name and addr")
		}
		if _, dup := byName[up.Name]; dup {
			return nil, fmt.Errorf("duplicate upstream %q", up.Name)
		}
		byName[up.Name] = up
	}

	transport := newTransport(opts.ConnectTimeout)
	handlers := make([]http.Handler, len(table.Routes()))
	for i, route := range table.Routes() {
		switch rt := route.(type) {
		case StaticRoute:
			handlers[i] = http.StripPrefix(rt.Prefix, http.FileServer(http.Dir(rt.Dir)))
		case PrefixRoute:
			h, err := upstreamHandler(byName, transport, rt.Upstream, route.Label())
			if err != nil {
				return nil, err
			}
			handlers[i] = h
		case RegexRoute:
			h, err := upstreamHandler(byName, transport, rt.Upstream, route.Label())
			if err != nil {
				return nil, err
			}
			handlers[i] = h
		}
	}

	addrHeaders := opts.ClientAddrHeaders
	if len(addrHeaders) == 0 {
		addrHeaders = DefaultClientAddrHeaders
	}
	s := &Server{opts: opts, table: table, handlers: handlers, addrHeaders: addrHeaders}
	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/*", http.HandlerFunc(s.dispatch))
	s.mux = mux
	return s, nil
}

func upstreamHandler(byName map[string]Upstream, transport http.RoundTripper,
	name, label string) (http.Handler, error) {
	up, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("route references unknown upstream %q", name)
	}
	return newProxy(up, transport, label), nil
}

// dispatch resolves the first matching route and hands the request off
// unmodified. The client address is resolved from the trusted headers for
// logging only; RemoteAddr is never rewritten, so the proxy always appends
// the true connection peer to X-Forwarded-For.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	route, i, ok := s.table.Match(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	metrics.IncProxyRequest(route.Label())
	slog.Debug("dispatch",
		"route", route.Label(), "path", r.URL.Path,
		"client", clientAddr(r, s.addrHeaders))
	s.handlers[i].ServeHTTP(w, r)
}

// Handler exposes the full mux, healthz included.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until the context is canceled, then drains in-flight requests.
// WriteTimeout stays zero so streaming responses are never cut off.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("router listening", "addr", s.opts.Listen, "routes", len(s.table.Routes()))
		errCh <- s.httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutCtx)
	}
}
