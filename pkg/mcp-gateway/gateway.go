package mcpgateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/mcpmgr"
)

// Registry is the view of the connection registry the gateway needs.
// *mcpmgr.Manager implements it.
type Registry interface {
	Lookup(key string) (mcpmgr.Channel, bool)
	GetServerSummaries() []mcpmgr.ServerSummary
}

// Gateway serves the tool routes, health, and metrics over HTTP.
type Gateway struct {
	registry Registry
	opts     Options
	metrics  *metrics

	mux         *http.ServeMux
	httpHandler http.Handler
	knownPaths  map[string]struct{}

	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// NewGateway builds a Gateway over registry. The registry must already be
// initialized; the gateway never starts or stops servers itself.
func NewGateway(registry Registry, opts *Options) (*Gateway, error) {
	if registry == nil {
		return nil, fmt.Errorf("mcpgateway: registry is required")
	}
	options := opts.withDefaults()
	g := &Gateway{
		registry:   registry,
		opts:       options,
		knownPaths: make(map[string]struct{}),
	}
	for _, route := range options.Routes {
		if route.Path == "" || route.ServerKey == "" || route.Tool == "" || route.Decode == nil {
			return nil, fmt.Errorf("mcpgateway: incomplete route %+v", route)
		}
		if _, dup := g.knownPaths[route.Path]; dup {
			return nil, fmt.Errorf("mcpgateway: duplicate route %s", route.Path)
		}
		g.knownPaths[route.Path] = struct{}{}
	}
	g.knownPaths["/api/health"] = struct{}{}
	g.knownPaths["/metrics"] = struct{}{}

	g.metrics = newMetrics(options.Metrics, registry)
	g.httpHandler = g.mountHandler()
	return g, nil
}

// Handler exposes the HTTP handler with all middleware applied.
func (g *Gateway) Handler() http.Handler {
	return g.httpHandler
}

// ServeMux exposes the underlying mux so callers can add routes. Routes
// added here share the gateway middleware.
func (g *Gateway) ServeMux() *http.ServeMux {
	return g.mux
}

func (g *Gateway) mountHandler() http.Handler {
	mux := http.NewServeMux()
	for _, route := range g.opts.Routes {
		mux.Handle("POST "+route.Path, g.toolHandler(route))
	}
	mux.HandleFunc("GET /api/health", g.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(g.opts.Metrics, promhttp.HandlerOpts{Registry: g.opts.Metrics}))
	g.mux = mux
	return g.withMiddleware(mux)
}

// ListenAndServe listens on Options.Addr and serves until the provided context
// is cancelled or the server stops.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.opts.Addr)
	if err != nil {
		return fmt.Errorf("mcpgateway: listen %s: %w", g.opts.Addr, err)
	}
	return g.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within Options.ShutdownTimeout.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	g.httpServerMu.Lock()
	if g.httpServer != nil {
		serv := g.httpServer
		g.httpServerMu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("mcpgateway: server already running on %s", serv.Addr)
	}
	srv := &http.Server{Addr: ln.Addr().String(), Handler: g.Handler()}
	g.httpServer = srv
	g.httpServerMu.Unlock()
	defer func() {
		g.httpServerMu.Lock()
		if g.httpServer == srv {
			g.httpServer = nil
		}
		g.httpServerMu.Unlock()
	}()

	g.opts.Logger.Info("MCP gateway listening", "addr", srv.Addr, "routes", g.routeList())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.opts.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the embedded HTTP server if it is running.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.httpServerMu.Lock()
	srv := g.httpServer
	g.httpServer = nil
	g.httpServerMu.Unlock()
	if srv == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}

func (g *Gateway) routeList() []string {
	out := make([]string, 0, len(g.opts.Routes)+2)
	for _, route := range g.opts.Routes {
		out = append(out, "POST "+route.Path)
	}
	return append(out, "GET /api/health", "GET /metrics")
}

func (g *Gateway) logError(ctx context.Context, msg string, err error, args ...any) {
	if err == nil {
		return
	}
	attrs := append([]any{"error", err}, args...)
	requestLogger(ctx, g.opts.Logger).Error(msg, attrs...)
}
