package mcpgateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/logging"
)

const requestIDHeader = "X-Request-ID"

type loggerKey struct{}

func requestLogger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// withMiddleware wraps next with, from the outside in: CORS, request IDs,
// access logging and metrics, panic recovery, and the body size limit.
func (g *Gateway) withMiddleware(next http.Handler) http.Handler {
	h := g.limitBody(next)
	h = g.recoverPanics(h)
	h = g.accessLog(h)
	h = g.requestID(h)
	return cors.New(*g.opts.CORS).Handler(h)
}

func (g *Gateway) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		logger := logging.WithRequestID(g.opts.Logger, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wrote {
		s.status = code
		s.wrote = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wrote {
		s.status = http.StatusOK
		s.wrote = true
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (g *Gateway) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := g.routeLabel(r)
		g.metrics.recordRequest(route, r.Method, strconv.Itoa(rec.status), elapsed)
		requestLogger(r.Context(), g.opts.Logger).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed)
	})
}

func (g *Gateway) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			requestLogger(r.Context(), g.opts.Logger).Error("Unhandled error",
				"panic", fmt.Sprint(v),
				"stack", string(debug.Stack()))
			msg := fmt.Sprint(v)
			if err, ok := v.(error); ok {
				msg = err.Error()
			}
			if g.opts.Production || msg == "" {
				msg = internalErrorMessage
			}
			writeError(w, http.StatusInternalServerError, msg)
		}()
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, g.opts.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) routeLabel(r *http.Request) string {
	if _, ok := g.knownPaths[r.URL.Path]; ok {
		return r.URL.Path
	}
	return "other"
}
