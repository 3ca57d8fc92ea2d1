package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aretw0/tourguide/internal/cli"
	"github.com/aretw0/tourguide/pkg/adapters/mcp"
	"github.com/aretw0/tourguide/pkg/panel"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the panel as an MCP server so AI agents can start and follow tutorials.

The server talks to the tab orchestrators over the configured bus. Use the nats bus
to reach the tabs of a separate 'tourguide run' process.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		stack, err := cli.Build(cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		opts := []panel.Option{panel.WithLogger(logger)}
		if stack.Client != nil {
			opts = append(opts, panel.WithStepSource(stack.Client))
		}
		if stack.Catalog != nil {
			opts = append(opts, panel.WithCatalog(stack.Catalog))
		}
		srv := mcp.NewServer(panel.New(stack.Bus, opts...), mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting Tourguide MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()
			baseURL, _ := cmd.Flags().GetString("base-url")
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			return srv.ServeSSE(sigCtx, addr, baseURL)
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL of the SSE endpoint")
}
