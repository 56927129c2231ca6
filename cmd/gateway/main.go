// Command gateway launches the MCP tool servers and serves the HTTP API in
// front of them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpgateway "github.com/vikashloomba/mcp-tool-gateway-go/pkg/mcp-gateway"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/logging"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/paths"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type config struct {
	port           int
	production     bool
	serversRoot    string
	registryPath   string
	logJSONRPC     bool
	connectTimeout time.Duration
	callTimeout    time.Duration
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	cmd := &cobra.Command{
		Use:          "gateway",
		Short:        "HTTP gateway in front of the MCP tool servers",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Version:      version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.port, "port", envInt("PORT", 3001), "HTTP port (env PORT)")
	f.BoolVar(&cfg.production, "production", os.Getenv("GATEWAY_ENV") == "production", "mask unhandled error messages (env GATEWAY_ENV=production)")
	f.StringVar(&cfg.serversRoot, "servers-root", paths.DefaultRoot, "build output directory holding servers/<dir>/<name>")
	f.StringVar(&cfg.registryPath, "registry", os.Getenv(servers.RegistryEnv), "YAML server registry; built-in servers when empty")
	f.BoolVar(&cfg.logJSONRPC, "log-jsonrpc", false, "log JSON-RPC traffic at debug level")
	f.DurationVar(&cfg.connectTimeout, "connect-timeout", mcpmgr.DefaultConnectTimeout, "per-server launch and handshake timeout")
	f.DurationVar(&cfg.callTimeout, "call-timeout", 0, "per tool call timeout; 0 disables")
	return cmd
}

func run(ctx context.Context, cfg *config) error {
	logger := logging.New(logging.FromEnv())

	registry := servers.Default()
	env := map[string]string{}
	if cfg.registryPath != "" {
		abs, err := filepath.Abs(cfg.registryPath)
		if err != nil {
			return err
		}
		if registry, err = servers.LoadFile(abs); err != nil {
			return err
		}
		env[servers.RegistryEnv] = abs
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgrLogger := logging.WithComponent(logger, "mcpmgr")
	manager := mcpmgr.NewManager(&mcpmgr.ManagerOptions{
		Logger:         mgrLogger,
		Resolver:       paths.Resolver{Root: cfg.serversRoot},
		Env:            env,
		ConnectTimeout: cfg.connectTimeout,
		LogJSONRPC:     cfg.logJSONRPC,
		OnError: func(key string, err error) {
			mgrLogger.Error("server connection lost", "server", key, "error", err)
		},
	})
	if err := manager.Initialize(ctx, registry.Descriptors()); err != nil {
		logger.Error("failed to initialize MCP servers", "error", err)
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := manager.DisconnectAllServers(shutdownCtx); err != nil {
			logger.Warn("closing MCP servers", "error", err)
		}
	}()

	gateway, err := mcpgateway.NewGateway(manager, &mcpgateway.Options{
		Addr:        fmt.Sprintf(":%d", cfg.port),
		Production:  cfg.production,
		Logger:      logging.WithComponent(logger, "gateway"),
		CallTimeout: cfg.callTimeout,
	})
	if err != nil {
		return err
	}

	logger.Info("MCP Client API running", "url", fmt.Sprintf("http://localhost:%d", cfg.port))
	if err := gateway.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("gateway server stopped", "error", err)
		return err
	}
	logger.Info("Server closed")
	return nil
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
