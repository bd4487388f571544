package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/snpedia-variant-pipeline/internal/domain"
	"github.com/snpedia-variant-pipeline/pkg/markup"
	"github.com/snpedia-variant-pipeline/pkg/wikitext"
)

// ExtractionService turns one fetched page into a normalized record.
// It performs no I/O and holds no mutable state, so one instance may serve concurrent callers.
type ExtractionService struct {
	logger *logrus.Logger
}

// NewExtractionService creates a new extraction service
func NewExtractionService(logger *logrus.Logger) *ExtractionService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ExtractionService{logger: logger}
}

// Extract runs the structural, template and free-text extractors independently and
// merges their results. A failing extractor contributes nothing; a record is always returned.
func (s *ExtractionService) Extract(input domain.ExtractionInput) *domain.NormalizedVariantRecord {
	structural := guarded(s, "structural", input.VariantID, func() *domain.StructuralExtraction {
		return markup.ExtractStructural(input.HTML)
	})
	template := guarded(s, "template", input.VariantID, func() domain.TemplateExtraction {
		return ExtractTemplateFields(input.Wikitext)
	})
	freeText := guarded(s, "free_text", input.VariantID, func() domain.FreeTextAnnotations {
		return wikitext.Annotate(input.Wikitext)
	})

	record := MergeExtractions(structural, &template, &freeText)
	// the caller's key names the record; page-derived ids only fill in when it is missing
	if key := domain.CanonicalVariantID(input.VariantID); key != "" {
		if record.ID != "" && record.ID != key {
			s.logger.WithFields(logrus.Fields{
				"variant_id": key,
				"page_id":    record.ID,
			}).Warn("Page identifier differs from the requested variant, keeping the requested id")
		}
		record.ID = key
	} else if record.ID == "" {
		record.ID = inputKey(input.VariantID)
	}
	record.RawContent = &domain.RawContent{HTML: input.HTML, Wikitext: input.Wikitext}

	s.logger.WithFields(logrus.Fields{
		"variant_id":          record.ID,
		"has_structural_data": record.Provenance.HasStructuralData,
		"has_template_data":   record.Provenance.HasTemplateData,
		"genotypes":           record.Provenance.GenotypeCount,
		"citations":           len(record.Citations),
		"traits":              len(record.Traits),
	}).Debug("Variant page extracted")

	return record
}

// inputKey canonicalises the caller's identifier, keeping unusual keys lowercased as given
func inputKey(variantID string) string {
	if id := domain.CanonicalVariantID(variantID); id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(variantID))
}

// guarded runs one extractor, turning a panic into a warning and a zero result
func guarded[T any](s *ExtractionService, stage, variantID string, fn func() T) (result T) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			s.logger.WithFields(logrus.Fields{
				"stage":      stage,
				"variant_id": variantID,
				"panic":      fmt.Sprint(r),
			}).Warn("Extractor failed, continuing without its output")
		}
	}()
	return fn()
}
