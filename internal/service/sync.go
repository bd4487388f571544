package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// SyncService drives fetch → extract → enrich → store for queued variants
type SyncService struct {
	fetcher   domain.PageFetcher
	extractor *ExtractionService
	enricher  domain.CitationEnricher
	store     domain.VariantStore
	queue     domain.FetchQueue
	config    domain.QueueConfig
	logger    *logrus.Logger
}

// NewSyncService wires the sync pipeline. enricher may be nil.
func NewSyncService(
	fetcher domain.PageFetcher,
	extractor *ExtractionService,
	enricher domain.CitationEnricher,
	store domain.VariantStore,
	queue domain.FetchQueue,
	config domain.QueueConfig,
	logger *logrus.Logger,
) *SyncService {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	if extractor == nil {
		extractor = NewExtractionService(logger)
	}
	return &SyncService{
		fetcher:   fetcher,
		extractor: extractor,
		enricher:  enricher,
		store:     store,
		queue:     queue,
		config:    config,
		logger:    logger,
	}
}

// SyncVariant fetches one page, extracts it and stores the result.
// A missing page surfaces as domain.ErrPageNotFound.
func (s *SyncService) SyncVariant(ctx context.Context, variantID string) (*domain.NormalizedVariantRecord, error) {
	page, err := s.fetcher.FetchPage(ctx, variantID)
	if err != nil {
		return nil, err
	}

	record := s.extractor.Extract(domain.ExtractionInput{
		VariantID: variantID,
		HTML:      page.HTML,
		Wikitext:  page.Wikitext,
	})
	if !s.config.KeepRawContent {
		record.RawContent = nil
	}

	s.enrichCitations(ctx, record)

	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("storing %s: %w", record.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"variant_id": record.ID,
		"gene":       record.Gene,
		"genotypes":  len(record.Genotypes),
		"citations":  len(record.Citations),
	}).Info("Variant synced")

	return record, nil
}

// enrichCitations fills in missing citation titles. Failures are logged and ignored.
func (s *SyncService) enrichCitations(ctx context.Context, record *domain.NormalizedVariantRecord) {
	if s.enricher == nil {
		return
	}
	var missing []string
	for _, c := range record.Citations {
		if c.Title == "" {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) == 0 {
		return
	}

	titles, err := s.enricher.FetchTitles(ctx, missing)
	if err != nil {
		s.logger.WithError(err).WithField("variant_id", record.ID).Warn("Citation enrichment failed")
	}
	for i := range record.Citations {
		if record.Citations[i].Title == "" {
			record.Citations[i].Title = titles[record.Citations[i].ID]
		}
	}
}

// ProcessNext claims one job, syncs it and records the outcome.
// It returns domain.ErrQueueEmpty when nothing is pending; sync failures are
// recorded on the job rather than returned.
func (s *SyncService) ProcessNext(ctx context.Context) (*domain.FetchJob, error) {
	job, err := s.queue.DequeueNext(ctx)
	if err != nil {
		return nil, err
	}

	status := domain.JobDone
	_, syncErr := s.SyncVariant(ctx, job.VariantID)
	switch {
	case syncErr == nil:
	case errors.Is(syncErr, domain.ErrPageNotFound):
		status = domain.JobNotFound
	default:
		status = domain.JobFailed
		s.logger.WithError(syncErr).WithFields(logrus.Fields{
			"variant_id": job.VariantID,
			"attempts":   job.Attempts,
		}).Warn("Variant sync failed")
	}

	// record the outcome even if the caller's context was cancelled mid-sync
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.queue.MarkResult(markCtx, job.VariantID, status, syncErr); err != nil {
		return job, fmt.Errorf("recording result for %s: %w", job.VariantID, err)
	}

	job.Status = status
	if syncErr != nil {
		job.LastError = syncErr.Error()
	}
	return job, nil
}

// Drain processes jobs until the queue is empty and returns how many were handled
func (s *SyncService) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, err := s.ProcessNext(ctx)
		if errors.Is(err, domain.ErrQueueEmpty) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Run drains the queue with the configured number of workers, polling for new
// work, until ctx is done.
func (s *SyncService) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"workers":       s.config.Workers,
		"poll_interval": s.config.PollInterval.String(),
	}).Info("Sync worker started")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()

	s.logger.Info("Sync worker stopped")
	return nil
}

func (s *SyncService) workerLoop(ctx context.Context, worker int) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		_, err := s.ProcessNext(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrQueueEmpty) && ctx.Err() == nil {
			s.logger.WithError(err).WithField("worker", worker).Error("Queue processing failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
