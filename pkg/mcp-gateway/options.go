package mcpgateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
)

const (
	// DefaultAddr is the listen address used when Options.Addr is empty.
	DefaultAddr = ":3001"
	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Options configure a Gateway instance.
type Options struct {
	// Addr controls the listen address used by ListenAndServe. Defaults to ":3001".
	Addr string
	// Production masks the messages of unhandled errors.
	Production bool
	// Logger receives structured diagnostics.
	Logger *slog.Logger
	// Metrics collects gateway metrics and backs GET /metrics. Defaults to a
	// fresh registry owned by the gateway.
	Metrics *prometheus.Registry
	// CORS overrides the cross-origin policy. The default allows any origin.
	CORS *cors.Options
	// CallTimeout bounds each tool call. Zero leaves calls bounded only by
	// the request context.
	CallTimeout time.Duration
	// MaxBodyBytes caps request bodies. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
	// Routes lists the tool routes to mount. Defaults to DefaultRoutes().
	Routes []ToolRoute
}

func (o *Options) withDefaults() Options {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = prometheus.NewRegistry()
	}
	if opts.CORS == nil {
		opts.CORS = &cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
		}
	} else {
		c := *opts.CORS
		opts.CORS = &c
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Routes == nil {
		opts.Routes = DefaultRoutes()
	} else {
		opts.Routes = append([]ToolRoute(nil), opts.Routes...)
	}
	return opts
}
