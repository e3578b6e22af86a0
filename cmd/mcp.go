package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	coreConfig "github.com/reelforge/reelforge/core/config"
	"github.com/reelforge/reelforge/ui/mcp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the orchestrator MCP server using SSE",
	Long:  `Start a Model Context Protocol server over Server-Sent Events so AI agents can create jobs, apply planning action cards, and query the content calendar.`,
	Run:   mcpServer,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("port", "", "override MCP_PORT")
	mcpCmd.Flags().String("host", "", "override MCP_HOST")
}

func mcpServer(cmd *cobra.Command, _ []string) {
	cfg := coreConfig.Global
	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.MCP.Port = portFlag
	}
	if hostFlag, _ := cmd.Flags().GetString("host"); hostFlag != "" {
		cfg.MCP.Host = hostFlag
	}

	mcpServer := server.NewMCPServer(
		"ReelForge Orchestrator MCP Server",
		cfg.App.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
	)

	jobHandler := mcp.InitMcpJob(jobUsecase, quotaUsecase)
	jobHandler.AddJobTools(mcpServer)

	plannerHandler := mcp.InitMcpPlanner(planningUsecase, calendarUsecase)
	plannerHandler.AddPlannerTools(mcpServer)

	sseServer := server.NewSSEServer(
		mcpServer,
		server.WithBaseURL(fmt.Sprintf("http://%s:%s", cfg.MCP.Host, cfg.MCP.Port)),
		server.WithKeepAlive(true),
	)

	addr := fmt.Sprintf("%s:%s", cfg.MCP.Host, cfg.MCP.Port)
	logrus.Printf("Starting MCP SSE server on %s", addr)
	logrus.Printf("SSE endpoint: http://%s/sse", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[MCP] Termination signal received, shutting down gracefully...")
		StopApp()
		os.Exit(0)
	}()

	if err := sseServer.Start(addr); err != nil {
		logrus.Fatalf("Failed to start SSE server: %v", err)
	}
}
