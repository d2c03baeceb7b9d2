// Package main provides the entry point for the jaegerds MCP (Model Context Protocol) server.
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"jaegerds/internal/app"
	"jaegerds/internal/config"
	mcpsrv "jaegerds/internal/mcp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// stdout carries the protocol, so logs go to stderr.
	logConfig := zap.NewProductionConfig()
	logConfig.OutputPaths = []string{"stderr"}
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	s := server.NewMCPServer(
		"jaegerds-mcp",
		"1.0.0",
	)

	mcpsrv.New(a.Datasource, a.Logger.Named("mcp")).RegisterTools(s)

	a.Logger.Info("jaegerds MCP server listening on stdio")
	if err := server.ServeStdio(s); err != nil {
		a.Logger.Error("Server error", zap.Error(err))
	}
}
