// Package main provides the lightweight MCP entry point for the SNPedia pipeline.
// This version requires no external databases - uses in-memory caching and SQLite.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/snpedia-variant-pipeline/internal/config"
	"github.com/snpedia-variant-pipeline/internal/mcp"
)

func main() {
	// stdout carries the MCP protocol; everything else goes to stderr
	log.SetOutput(os.Stderr)

	cfg := config.LoadLiteConfig()
	log.Printf("Data directory: %s", cfg.DataDir)

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		log.Printf("MCP server failed: %v", err)
		return
	}

	log.Println("SNPedia MCP server (lite) stopped")
}
