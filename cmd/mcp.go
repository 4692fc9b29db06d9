package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	coreDB "github.com/eduzayn/educhat/core/database"
	"github.com/eduzayn/educhat/ui/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the EduChat MCP server using SSE",
	Long:  `Start a Model Context Protocol server over Server-Sent Events so AI agents can read the inbox, inspect deals and memory, and reply to contacts.`,
	Run:   mcpServer,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("host", "", "Host for the SSE MCP server (default MCP_HOST or localhost)")
	mcpCmd.Flags().String("mcp-port", "", "Port for the SSE MCP server (default MCP_PORT or 8080)")
}

func mcpServer(cmd *cobra.Command, _ []string) {
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.MCP.Host = host
	}
	if port, _ := cmd.Flags().GetString("mcp-port"); port != "" {
		cfg.MCP.Port = port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coreDB.Migrate(ctx, migrators...); err != nil {
		logrus.Fatalf("[DATABASE] Migration failed: %v", err)
	}
	go hub.Run(ctx)

	mcpServer := server.NewMCPServer(
		"EduChat MCP Server",
		cfg.App.Version,
		server.WithToolCapabilities(true),
	)

	mcp.InitMcpSend(sendUsecase).AddSendTools(mcpServer)
	mcp.InitMcpQuery(registry, memoryService, dealProjector, analyzer).AddQueryTools(mcpServer)

	addr := fmt.Sprintf("%s:%s", cfg.MCP.Host, cfg.MCP.Port)
	sseServer := server.NewSSEServer(
		mcpServer,
		server.WithBaseURL("http://"+addr),
		server.WithKeepAlive(true),
	)

	logrus.Printf("Starting EduChat MCP SSE server on %s", addr)
	logrus.Printf("SSE endpoint: http://%s/sse", addr)
	logrus.Printf("Message endpoint: http://%s/message", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[MCP] Reception of termination signal, shutting down gracefully...")
		if err := sseServer.Shutdown(context.Background()); err != nil {
			logrus.Errorf("[MCP] Error during SSE shutdown: %v", err)
		}
		cancel()
		StopApp()
		os.Exit(0)
	}()

	if err := sseServer.Start(addr); err != nil {
		logrus.Fatalf("Failed to start SSE server: %v", err)
	}
}
