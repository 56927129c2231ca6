// Command calculation is the MCP calculation server. It serves the "add" tool
// over stdio and is launched by the gateway.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/calc"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/logging"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/toolserver"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var registryPath string
	cmd := &cobra.Command{
		Use:          "calculation",
		Short:        "MCP calculation server over stdio",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), registryPath)
		},
	}
	cmd.Flags().StringVar(&registryPath, "registry", os.Getenv(servers.RegistryEnv), "YAML server registry; built-in descriptor when empty")
	return cmd
}

func run(ctx context.Context, registryPath string) error {
	logger := logging.New(logging.FromEnv())
	desc, err := servers.DescriptorFor(registryPath, servers.CalcServerKey)
	if err != nil {
		return err
	}
	srv, err := toolserver.New(desc, map[string]toolserver.ToolFunc{
		calc.ToolName: toolserver.Typed(calc.DecodeAddArgs, calc.Add),
	}, &toolserver.Options{Logger: logger, Label: "Calc"})
	if err != nil {
		return err
	}
	logger.Info("Calculator MCP Server running on stdio")
	return srv.ServeStdio(ctx)
}
