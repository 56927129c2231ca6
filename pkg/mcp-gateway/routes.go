package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/calc"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/chat"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
)

const internalErrorMessage = "Internal server error"

// ToolRoute maps a POST endpoint onto one tool of one server.
type ToolRoute struct {
	// Path is the HTTP path, e.g. "/api/calc/add".
	Path string
	// ServerKey selects the channel in the registry.
	ServerKey string
	// Tool is the tool invoked on that server.
	Tool string
	// Unavailable is returned with a 500 when the server has no channel.
	Unavailable string
	// Decode validates the request body and returns the tool arguments.
	// Its error message is returned to the client with a 400.
	Decode func([]byte) (any, error)
}

// Decoder adapts a typed argument decoder for use in a ToolRoute.
func Decoder[T any](decode func([]byte) (T, error)) func([]byte) (any, error) {
	return func(raw []byte) (any, error) {
		v, err := decode(raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// DefaultRoutes returns the calculator and chat routes.
func DefaultRoutes() []ToolRoute {
	return []ToolRoute{
		{
			Path:        "/api/calc/add",
			ServerKey:   servers.CalcServerKey,
			Tool:        calc.ToolName,
			Unavailable: "Calculator service not available",
			Decode:      Decoder(calc.DecodeAddArgs),
		},
		{
			Path:        "/api/ai/chat",
			ServerKey:   servers.BotServerKey,
			Tool:        chat.ToolName,
			Unavailable: "AI service not available",
			Decode:      Decoder(chat.DecodeChatArgs),
		},
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type resultBody struct {
	Result any `json:"result"`
}

type healthEntry struct {
	Status string   `json:"status"`
	Name   string   `json:"name"`
	Tools  []string `json:"tools"`
}

type healthBody struct {
	Status map[string]healthEntry `json:"status"`
}

func (g *Gateway) toolHandler(route ToolRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		args, err := route.Decode(body)
		if err != nil {
			g.metrics.recordToolCall(route, outcomeInvalid, 0)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ch, ok := g.registry.Lookup(route.ServerKey)
		if !ok {
			g.metrics.recordToolCall(route, outcomeUnavailable, 0)
			g.logError(r.Context(), "tool call failed", errors.New(route.Unavailable),
				"route", route.Path, "server", route.ServerKey, "tool", route.Tool)
			writeError(w, http.StatusInternalServerError, route.Unavailable)
			return
		}

		ctx := r.Context()
		if g.opts.CallTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.opts.CallTimeout)
			defer cancel()
		}
		start := time.Now()
		res, err := ch.CallTool(ctx, route.Tool, args)
		if err != nil {
			g.metrics.recordToolCall(route, outcomeError, time.Since(start))
			g.logError(r.Context(), "tool call failed", err,
				"route", route.Path, "server", route.ServerKey, "tool", route.Tool)
			msg := err.Error()
			if msg == "" {
				msg = internalErrorMessage
			}
			writeError(w, http.StatusInternalServerError, msg)
			return
		}
		g.metrics.recordToolCall(route, outcomeSuccess, time.Since(start))
		writeJSON(w, http.StatusOK, resultBody{Result: res})
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	out := healthBody{Status: make(map[string]healthEntry)}
	for _, s := range g.registry.GetServerSummaries() {
		tools := s.Tools
		if tools == nil {
			tools = []string{}
		}
		out.Status[s.Key] = healthEntry{
			Status: string(s.Status),
			Name:   s.Name,
			Tools:  tools,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
