// Package mcp exposes the extraction pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/service"
)

// VariantSyncer fetches, extracts and stores a single variant on demand
type VariantSyncer interface {
	SyncVariant(ctx context.Context, variantID string) (*domain.NormalizedVariantRecord, error)
}

// Dependencies are the services behind the tools. Store, Queue and Syncer
// may be nil; tools that need a missing dependency report an error result.
type Dependencies struct {
	Extractor *service.ExtractionService
	Store     domain.VariantStore
	Queue     domain.FetchQueue
	Syncer    VariantSyncer
}

// Server represents the SNPedia pipeline MCP server
type Server struct {
	mcpServer *mcp.Server
	deps      Dependencies
	logger    *logrus.Logger
}

// ServerInfo contains MCP server metadata
var ServerInfo = &mcp.Implementation{
	Name:    "snpedia-variant-pipeline",
	Version: "v0.1.0",
}

// NewServer creates a new MCP server instance with every tool registered
func NewServer(deps Dependencies, logger *logrus.Logger) (*Server, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if deps.Extractor == nil {
		deps.Extractor = service.NewExtractionService(logger)
	}

	server := &Server{
		mcpServer: mcp.NewServer(ServerInfo, nil),
		deps:      deps,
		logger:    logger,
	}

	if err := server.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return server, nil
}

// registerTools registers the pipeline tools with the MCP SDK
func (s *Server) registerTools() error {
	s.logger.Info("Registering tools with MCP SDK...")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "extract_snpedia_variant",
		Description: "Extract a normalized variant record from SNPedia page HTML and wikitext. Nothing is stored.",
	}, s.handleExtractVariant)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_variant",
		Description: "Return the stored normalized record for a variant, optionally fetching it from SNPedia first.",
	}, s.handleGetVariant)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "classify_genotype_risk",
		Description: "Classify every genotype of a stored variant into HIGH, MEDIUM or LOW risk by magnitude, and match the user's genotype when given.",
	}, s.handleClassifyRisk)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "queue_variants",
		Description: "Queue variants for background fetching from SNPedia.",
	}, s.handleQueueVariants)

	s.logger.WithField("tool_count", 4).Info("Successfully registered all tools")
	return nil
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Run serves MCP over the given transport until the client disconnects or ctx is done.
// A nil transport means stdio.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if transport == nil {
		transport = &mcp.StdioTransport{}
	}
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
