// Command bot is the MCP bot server. It serves the "chat" tool over stdio,
// forwarding prompts to a local inference endpoint.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/chat"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/inference"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/logging"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/toolserver"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type config struct {
	registryPath string
	endpoint     string
	model        string
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	cmd := &cobra.Command{
		Use:          "bot",
		Short:        "MCP chat server over stdio",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.registryPath, "registry", os.Getenv(servers.RegistryEnv), "YAML server registry; built-in descriptor when empty")
	f.StringVar(&cfg.endpoint, "inference-url", envOr("INFERENCE_URL", inference.DefaultEndpoint), "generate endpoint (env INFERENCE_URL)")
	f.StringVar(&cfg.model, "model", envOr("INFERENCE_MODEL", inference.DefaultModel), "model name (env INFERENCE_MODEL)")
	return cmd
}

func run(ctx context.Context, cfg *config) error {
	logger := logging.New(logging.FromEnv())
	desc, err := servers.DescriptorFor(cfg.registryPath, servers.BotServerKey)
	if err != nil {
		return err
	}
	handler := &chat.Handler{Generator: &inference.Client{
		Endpoint: cfg.endpoint,
		Model:    cfg.model,
		APIKey:   os.Getenv("INFERENCE_API_KEY"),
	}}
	srv, err := toolserver.New(desc, map[string]toolserver.ToolFunc{
		chat.ToolName: toolserver.Typed(chat.DecodeChatArgs, handler.Chat),
	}, &toolserver.Options{Logger: logger, Label: "Bot"})
	if err != nil {
		return err
	}
	logger.Info("Bot MCP Server running on stdio", "endpoint", cfg.endpoint, "model", cfg.model)
	return srv.ServeStdio(ctx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
