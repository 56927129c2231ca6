package mcpmgr

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
)

// Launcher turns a resolved server executable into an MCP transport.
type Launcher interface {
	Launch(ctx context.Context, desc servers.ServerDescriptor, path string) (mcp.Transport, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, desc servers.ServerDescriptor, path string) (mcp.Transport, error)

func (f LauncherFunc) Launch(ctx context.Context, desc servers.ServerDescriptor, path string) (mcp.Transport, error) {
	return f(ctx, desc, path)
}

// CommandLauncher starts the executable as a child process and speaks MCP
// over its standard streams.
type CommandLauncher struct {
	// Env is appended to the inherited environment.
	Env map[string]string
	// Stderr receives the child's standard error. Defaults to os.Stderr.
	Stderr io.Writer
}

func (l *CommandLauncher) Launch(_ context.Context, desc servers.ServerDescriptor, path string) (mcp.Transport, error) {
	if desc.Transport != "" && desc.Transport != servers.TransportStdio {
		return nil, fmt.Errorf("mcpmgr: unsupported transport %q for %q", desc.Transport, desc.Key)
	}
	if path == "" {
		return nil, fmt.Errorf("mcpmgr: command missing for %q", desc.Key)
	}
	cmd := exec.Command(path)
	if len(l.Env) > 0 {
		env := os.Environ()
		keys := make([]string, 0, len(l.Env))
		for k := range l.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, fmt.Sprintf("%s=%s", k, l.Env[k]))
		}
		cmd.Env = env
	}
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return &mcp.CommandTransport{Command: cmd}, nil
}
