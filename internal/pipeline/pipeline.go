// Package pipeline composes fetching, extraction and persistence into one
// scraping run with partial-failure tolerance.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/quseop/property-ci-scraper/internal/extractor"
	"github.com/quseop/property-ci-scraper/internal/metrics"
	"github.com/quseop/property-ci-scraper/internal/property"
)

// Config controls optional pipeline behavior.
type Config struct {
	// SnapshotContentType is stamped on archived markup blobs.
	SnapshotContentType string
}

// Pipeline executes scraping jobs. It holds no per-run state; concurrent
// Run calls for different jobs share nothing beyond the injected
// collaborators.
type Pipeline struct {
	fetcher   property.Fetcher
	extractor *extractor.Extractor
	store     property.Store
	blobStore property.BlobStore
	hasher    property.Hasher
	clock     property.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline. blobStore and hasher may be nil, which disables
// markup snapshot archiving.
func New(
	fetcher property.Fetcher,
	ext *extractor.Extractor,
	store property.Store,
	blobStore property.BlobStore,
	hasher property.Hasher,
	clock property.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SnapshotContentType == "" {
		cfg.SnapshotContentType = "text/html; charset=utf-8"
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: ext,
		store:     store,
		blobStore: blobStore,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one scraping run for the job snapshot and returns its terminal
// result. A fetch failure is run-fatal; extraction skips and per-listing
// persistence failures are not. Run never returns an error: every failure
// mode is captured in the result.
func (p *Pipeline) Run(ctx context.Context, job property.ScrapingJob) property.ScrapingResult {
	startedAt := p.clock.Now()
	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	logger := p.logger.With(zap.String("job_id", job.ID), zap.String("url", job.TargetURL))
	logger.Info("starting scraping run", zap.String("job_name", job.Name))

	result := property.ScrapingResult{
		JobID:     job.ID,
		Status:    property.RunStatusRunning,
		Errors:    []string{},
		StartedAt: startedAt,
	}

	resp, err := p.fetcher.Fetch(ctx, job.TargetURL)
	if err != nil {
		logger.Error("fetch failed", zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		return p.finalize(result, logger)
	}

	result.SnapshotURI = p.archive(ctx, job, resp.Body, logger)

	listings, err := p.extractor.Extract(ctx, resp.Body, job.Selectors, job.TargetURL)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		return p.finalize(result, logger)
	}
	logger.Info("extracted candidate listings", zap.Int("count", len(listings)))

	for _, listing := range listings {
		if _, err := p.store.Create(ctx, listing); err != nil {
			if errors.Is(err, property.ErrDuplicateSourceURL) {
				// Already persisted from an earlier run of this page.
				continue
			}
			logger.Warn("persist listing failed", zap.String("title", listing.Title), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("persist %q: %v", listing.Title, err))
			continue
		}
		result.ListingsPersisted++
	}

	return p.finalize(result, logger)
}

// finalize stamps the completion time and classifies the terminal status: a
// run fails only when nothing was persisted and at least one error occurred.
// Partial success is still success.
func (p *Pipeline) finalize(result property.ScrapingResult, logger *zap.Logger) property.ScrapingResult {
	completed := p.clock.Now()
	result.CompletedAt = &completed

	if result.ListingsPersisted == 0 && len(result.Errors) > 0 {
		result.Status = property.RunStatusFailed
	} else {
		result.Status = property.RunStatusCompleted
	}

	metrics.ObserveRun(string(result.Status), completed.Sub(result.StartedAt))
	metrics.AddListingsPersisted(result.ListingsPersisted)

	logger.Info("scraping run finished",
		zap.String("status", string(result.Status)),
		zap.Int("listings_persisted", result.ListingsPersisted),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// archive stores the fetched markup. Archive failures are logged, never
// counted against the run.
func (p *Pipeline) archive(ctx context.Context, job property.ScrapingJob, body []byte, logger *zap.Logger) string {
	if p.blobStore == nil || p.hasher == nil {
		return ""
	}
	hash, err := p.hasher.Hash(body)
	if err != nil {
		logger.Warn("hash markup failed", zap.Error(err))
		return ""
	}
	path := fmt.Sprintf("%s/%s.html", job.ID, hash)
	uri, err := p.blobStore.Put(ctx, path, p.cfg.SnapshotContentType, body)
	if err != nil {
		logger.Warn("archive markup failed", zap.Error(err))
		return ""
	}
	return uri
}
