// Package toolserver is the shared bootstrap for the stdio MCP tool servers.
// A Server advertises the tools declared in its registry descriptor, binds
// each one to a Go function, and serves call-tool requests until its context
// is cancelled.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
)

var (
	// ErrUnknownTool is returned for a call naming a tool the server has no
	// body for.
	ErrUnknownTool = errors.New("Unknown tool")
	// ErrInvalidArguments wraps argument decode failures so they can be told
	// apart from errors raised by the tool itself.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// ToolFunc executes a tool with its raw JSON arguments and returns the text
// placed in the result content.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Typed adapts a decoder and a typed body into a ToolFunc. Decode errors are
// wrapped with ErrInvalidArguments; errors from run are returned unchanged.
func Typed[T any](decode func([]byte) (T, error), run func(context.Context, T) (string, error)) ToolFunc {
	return func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := decode(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidArguments, err)
		}
		return run(ctx, args)
	}
}

// State is the lifecycle phase of a Server.
type State int32

const (
	StateStarting State = iota
	StateConnected
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configure a Server.
type Options struct {
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Label prefixes error logs, e.g. "Calc" logs as "[Calc Server Error]".
	Label string
	// OnError is called with every error a tool call produces.
	OnError func(error)
}

// Server is one tool server process.
type Server struct {
	desc     servers.ServerDescriptor
	bindings map[string]ToolFunc
	opts     Options
	logger   *slog.Logger
	server   *mcp.Server
	state    atomic.Int32
}

// New builds a Server for desc. Every key in bindings must name a tool
// declared by desc; declared tools without a binding are still advertised
// but fail with ErrUnknownTool when called.
func New(desc servers.ServerDescriptor, bindings map[string]ToolFunc, opts *Options) (*Server, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	for name := range bindings {
		if _, ok := desc.Tool(name); !ok {
			return nil, fmt.Errorf("toolserver: %s: binding for undeclared tool %q", desc.Name, name)
		}
	}
	s := &Server{
		desc:     desc,
		bindings: bindings,
	}
	if opts != nil {
		s.opts = *opts
	}
	s.logger = s.opts.Logger
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.opts.Label == "" {
		s.opts.Label = desc.Name
	}

	s.server = mcp.NewServer(&mcp.Implementation{Name: desc.Name, Version: desc.Version}, nil)
	caps := servers.Capabilities(desc.Tools)
	for _, t := range desc.Tools {
		capability := caps[t.Name]
		schema := capability.InputSchema
		if schema == nil {
			schema = &jsonschema.Schema{Type: "object"}
		}
		s.server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: capability.Description,
			InputSchema: schema,
		}, s.handle)
	}
	return s, nil
}

// Descriptor returns the descriptor the server was built from.
func (s *Server) Descriptor() servers.ServerDescriptor { return s.desc }

// State reports the current lifecycle phase.
func (s *Server) State() State { return State(s.state.Load()) }

// Call runs the named tool directly, bypassing the transport.
func (s *Server) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	fn, ok := s.bindings[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return fn(ctx, args)
}

func (s *Server) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		name string
		args json.RawMessage
	)
	if req != nil && req.Params != nil {
		name = req.Params.Name
		args = req.Params.Arguments
	}
	s.logger.Debug("tool call", "server", s.desc.Name, "tool", name, "arguments", string(args))
	text, err := s.Call(ctx, name, args)
	if err != nil {
		s.reportError(err)
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

func (s *Server) reportError(err error) {
	s.logger.Error(fmt.Sprintf("[%s Server Error]", s.opts.Label), "error", err)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// Run serves t until ctx is cancelled or the peer disconnects. Cancellation
// and a clean end of input are not errors.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	if !s.state.CompareAndSwap(int32(StateStarting), int32(StateConnected)) {
		return fmt.Errorf("toolserver: %s already %s", s.desc.Name, s.State())
	}
	s.logger.Info("tool server running", "server", s.desc.Name, "version", s.desc.Version, "transport", s.desc.Transport)
	err := s.server.Run(ctx, t)
	s.state.Store(int32(StateClosing))
	defer s.state.Store(int32(StateTerminated))

	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		s.logger.Info("tool server stopped", "server", s.desc.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("toolserver: %s: %w", s.desc.Name, err)
	}
	return nil
}

// ServeStdio serves over the process's standard streams until SIGINT or
// SIGTERM.
func (s *Server) ServeStdio(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx, &mcp.StdioTransport{})
}
