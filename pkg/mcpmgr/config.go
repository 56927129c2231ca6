package mcpmgr

import (
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/paths"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
)

// DefaultConnectTimeout bounds the launch and handshake of a single server.
const DefaultConnectTimeout = 30 * time.Second

// RPCDirection represents the direction of an observed JSON-RPC message.
type RPCDirection string

const (
	RPCDirectionSend    RPCDirection = "send"
	RPCDirectionReceive RPCDirection = "receive"
)

// RPCLogEvent encapsulates JSON-RPC traffic for custom logging.
type RPCLogEvent struct {
	Direction RPCDirection
	Message   []byte
	ServerKey string
}

// RPCLogger is invoked for each JSON-RPC message when logging is enabled.
type RPCLogger func(RPCLogEvent)

// PathResolver maps a descriptor to the absolute path of its executable.
// paths.Resolver is the production implementation.
type PathResolver interface {
	Resolve(desc servers.ServerDescriptor) (string, error)
}

// ManagerOptions configures a Manager instance.
type ManagerOptions struct {
	// Logger receives lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Resolver locates server executables. Defaults to paths.Resolver{}.
	Resolver PathResolver
	// Launcher builds the transport for a resolved executable. Defaults to a
	// CommandLauncher carrying Env.
	Launcher Launcher
	// Env is appended to the inherited environment of launched servers when
	// the default launcher is used.
	Env map[string]string
	// ConnectTimeout bounds launch, handshake and tool verification per
	// server. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// ClientVersion is reported during the handshake. When empty, the
	// server descriptor's version is used.
	ClientVersion string
	// ClientOptions are passed to every mcp.Client the manager creates.
	ClientOptions mcp.ClientOptions
	// LogJSONRPC logs every JSON-RPC message at debug level through Logger.
	LogJSONRPC bool
	// RPCLogger provides a custom sink for JSON-RPC traffic; it takes
	// precedence over LogJSONRPC.
	RPCLogger RPCLogger
	// OnError is called when a connected server's session ends without
	// being disconnected through the manager.
	OnError func(serverKey string, err error)
}

func (o *ManagerOptions) normalized() ManagerOptions {
	var out ManagerOptions
	if o != nil {
		out = *o
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Resolver == nil {
		out.Resolver = paths.Resolver{}
	}
	if out.Launcher == nil {
		out.Launcher = &CommandLauncher{Env: out.Env}
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = DefaultConnectTimeout
	}
	return out
}
