package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/service"
)

// ExtractVariantParams defines parameters for the extract_snpedia_variant tool
type ExtractVariantParams struct {
	VariantID  string `json:"variant_id" jsonschema:"SNPedia identifier such as rs1801133"`
	HTML       string `json:"html,omitempty" jsonschema:"rendered page HTML"`
	Wikitext   string `json:"wikitext,omitempty" jsonschema:"page source wikitext"`
	IncludeRaw bool   `json:"include_raw,omitempty" jsonschema:"echo the raw inputs in the record"`
}

// GetVariantParams defines parameters for the get_variant tool
type GetVariantParams struct {
	VariantID string `json:"variant_id" jsonschema:"SNPedia identifier such as rs1801133"`
	Fetch     bool   `json:"fetch,omitempty" jsonschema:"fetch from SNPedia when the variant is not stored yet"`
}

// ClassifyRiskParams defines parameters for the classify_genotype_risk tool
type ClassifyRiskParams struct {
	VariantID string `json:"variant_id" jsonschema:"SNPedia identifier such as rs1801133"`
	Genotype  string `json:"genotype,omitempty" jsonschema:"the user's genotype, e.g. (C;T) or CT"`
}

// ClassifyRiskResult is returned by classify_genotype_risk
type ClassifyRiskResult struct {
	VariantID      string                        `json:"variant_id"`
	Risks          []domain.GenotypeRisk         `json:"risks"`
	Interpretation *domain.InterpretationRequest `json:"interpretation,omitempty"`
}

// QueueVariantsParams defines parameters for the queue_variants tool
type QueueVariantsParams struct {
	VariantIDs []string `json:"variant_ids" jsonschema:"identifiers to (re)fetch"`
}

// QueueVariantsResult is returned by queue_variants
type QueueVariantsResult struct {
	Queued   []string `json:"queued"`
	Rejected []string `json:"rejected,omitempty"`
}

func (s *Server) handleExtractVariant(ctx context.Context, req *mcp.CallToolRequest, params ExtractVariantParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "extract_snpedia_variant").Info("Tool invoked")

	if strings.TrimSpace(params.VariantID) == "" && params.HTML == "" && params.Wikitext == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("variant_id, html or wikitext is required")), nil, nil
	}

	record := s.deps.Extractor.Extract(domain.ExtractionInput{
		VariantID: params.VariantID,
		HTML:      params.HTML,
		Wikitext:  params.Wikitext,
	})
	if !params.IncludeRaw {
		record.RawContent = nil
	}

	return s.createJSONResult(record)
}

func (s *Server) handleGetVariant(ctx context.Context, req *mcp.CallToolRequest, params GetVariantParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "get_variant", "variant_id": params.VariantID}).Info("Tool invoked")

	record, result := s.loadVariant(ctx, params.VariantID, params.Fetch)
	if result != nil {
		return result, nil, nil
	}
	return s.createJSONResult(record)
}

func (s *Server) handleClassifyRisk(ctx context.Context, req *mcp.CallToolRequest, params ClassifyRiskParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "classify_genotype_risk", "variant_id": params.VariantID}).Info("Tool invoked")

	record, result := s.loadVariant(ctx, params.VariantID, false)
	if result != nil {
		return result, nil, nil
	}

	out := ClassifyRiskResult{
		VariantID: record.ID,
		Risks:     service.ClassifyRisk(record),
	}
	if params.Genotype != "" {
		out.Interpretation = service.BuildInterpretationRequest(record, params.Genotype)
	}
	return s.createJSONResult(out)
}

func (s *Server) handleQueueVariants(ctx context.Context, req *mcp.CallToolRequest, params QueueVariantsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "queue_variants", "count": len(params.VariantIDs)}).Info("Tool invoked")

	if s.deps.Queue == nil {
		return s.createErrorResult("Queue unavailable", fmt.Errorf("no fetch queue configured")), nil, nil
	}

	out := QueueVariantsResult{Queued: []string{}}
	for _, raw := range params.VariantIDs {
		if id := domain.CanonicalVariantID(raw); id != "" {
			out.Queued = append(out.Queued, id)
		} else {
			out.Rejected = append(out.Rejected, raw)
		}
	}
	if len(out.Queued) == 0 {
		return s.createErrorResult("No valid variant identifiers", fmt.Errorf("rejected: %s", strings.Join(out.Rejected, ", "))), nil, nil
	}

	if err := s.deps.Queue.Enqueue(ctx, out.Queued...); err != nil {
		return s.createErrorResult("Failed to enqueue variants", err), nil, nil
	}
	return s.createJSONResult(out)
}

// loadVariant reads a stored record, optionally syncing it first on a miss.
// A non-nil result is an error response for the caller to return.
func (s *Server) loadVariant(ctx context.Context, rawID string, fetch bool) (*domain.NormalizedVariantRecord, *mcp.CallToolResult) {
	id := domain.CanonicalVariantID(rawID)
	if id == "" {
		return nil, s.createErrorResult("Invalid parameter", domain.NewValidationError("variant_id", "expected an rs or i identifier", rawID))
	}
	if s.deps.Store == nil {
		return nil, s.createErrorResult("Store unavailable", fmt.Errorf("no variant store configured"))
	}

	record, err := s.deps.Store.Get(ctx, id)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, s.createErrorResult("Failed to load variant", err)
	}
	if !fetch || s.deps.Syncer == nil {
		return nil, s.createErrorResult("Variant not found", fmt.Errorf("%s is not stored; queue it or call get_variant with fetch=true", id))
	}

	record, err = s.deps.Syncer.SyncVariant(ctx, id)
	if errors.Is(err, domain.ErrPageNotFound) {
		return nil, s.createErrorResult("Variant not found", fmt.Errorf("SNPedia has no page for %s", id))
	}
	if err != nil {
		return nil, s.createErrorResult("Failed to fetch variant", err)
	}
	return record, nil
}

// createJSONResult renders a tool payload as indented JSON text
func (s *Server) createJSONResult(payload any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
