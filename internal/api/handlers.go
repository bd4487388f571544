package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ExtractRequest is the body of POST /api/v1/extract
type ExtractRequest struct {
	VariantID  string `json:"variant_id"`
	HTML       string `json:"html"`
	Wikitext   string `json:"wikitext"`
	IncludeRaw bool   `json:"include_raw"`
}

// RiskResponse is the body of GET /api/v1/variants/:id/risk
type RiskResponse struct {
	VariantID      string                        `json:"variant_id"`
	Risks          []domain.GenotypeRisk         `json:"risks"`
	Interpretation *domain.InterpretationRequest `json:"interpretation,omitempty"`
}

// QueueRequest is the body of POST /api/v1/queue
type QueueRequest struct {
	VariantIDs []string `json:"variant_ids" binding:"required,min=1"`
}

// QueueResponse reports which identifiers were accepted
type QueueResponse struct {
	Queued   []string `json:"queued"`
	Rejected []string `json:"rejected,omitempty"`
}

// handleExtract runs the extraction core on a caller-supplied page. Nothing is stored.
func (s *Server) handleExtract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.VariantID) == "" && req.HTML == "" && req.Wikitext == "" {
		writeError(c, http.StatusBadRequest, domain.ErrValidation, "variant_id, html or wikitext is required", nil)
		return
	}

	record := s.deps.Extractor.Extract(domain.ExtractionInput{
		VariantID: req.VariantID,
		HTML:      req.HTML,
		Wikitext:  req.Wikitext,
	})
	if !req.IncludeRaw {
		record.RawContent = nil
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) handleGetVariant(c *gin.Context) {
	record, ok := s.loadVariant(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleGetRisk classifies every genotype; ?genotype= also matches the caller's call
func (s *Server) handleGetRisk(c *gin.Context) {
	record, ok := s.loadVariant(c)
	if !ok {
		return
	}

	resp := RiskResponse{
		VariantID: record.ID,
		Risks:     service.ClassifyRisk(record),
	}
	if genotype := c.Query("genotype"); genotype != "" {
		resp.Interpretation = service.BuildInterpretationRequest(record, genotype)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListByGene(c *gin.Context) {
	gene := strings.TrimSpace(c.Param("gene"))
	if gene == "" {
		writeError(c, http.StatusBadRequest, domain.ErrValidation, "gene is required", nil)
		return
	}

	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit <= 0 || limit > maxPageSize {
		writeError(c, http.StatusBadRequest, domain.ErrValidation, "limit must be between 1 and 500", err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		writeError(c, http.StatusBadRequest, domain.ErrValidation, "offset must not be negative", err)
		return
	}

	records, err := s.deps.Store.ListByGene(c.Request.Context(), gene, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to list variants", err)
		return
	}
	if records == nil {
		records = []*domain.NormalizedVariantRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"gene":     gene,
		"variants": records,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleEnqueue(c *gin.Context) {
	if s.deps.Queue == nil {
		writeError(c, http.StatusServiceUnavailable, domain.ErrInternalServer, "Fetch queue is not configured", nil)
		return
	}

	var req QueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err)
		return
	}

	resp := QueueResponse{Queued: []string{}}
	for _, raw := range req.VariantIDs {
		if id := domain.CanonicalVariantID(raw); id != "" {
			resp.Queued = append(resp.Queued, id)
		} else {
			resp.Rejected = append(resp.Rejected, raw)
		}
	}
	if len(resp.Queued) == 0 {
		writeError(c, http.StatusBadRequest, domain.ErrValidation, "No valid variant identifiers", nil)
		return
	}

	if err := s.deps.Queue.Enqueue(c.Request.Context(), resp.Queued...); err != nil {
		respondError(c, err, domain.ErrDatabaseError, "Failed to enqueue variants")
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// loadVariant resolves :id to a stored record, writing the error response itself on failure
func (s *Server) loadVariant(c *gin.Context) (*domain.NormalizedVariantRecord, bool) {
	raw := c.Param("id")
	id := domain.CanonicalVariantID(raw)
	if id == "" {
		writeError(c, http.StatusBadRequest, domain.ErrValidation, "Invalid variant id",
			domain.NewValidationError("id", "expected an rs or i identifier", raw))
		return nil, false
	}

	record, err := s.deps.Store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, domain.ErrDatabaseError, "Failed to load variant")
		return nil, false
	}
	return record, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
