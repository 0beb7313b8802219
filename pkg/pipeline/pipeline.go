// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/embed"
	"github.com/tenderops/tender-ingress/pkg/model"
	"github.com/tenderops/tender-ingress/pkg/store"
)

// Pipeline orchestrates the ingestion stages: raw insert, cleaning with
// embedding, quality audit and health recompute. A mutex serializes the
// clean+audit+health sequence so overlapping runs cannot interleave their
// writes; raw inserts happen outside the lock and are picked up by whichever
// run scans next.
type Pipeline struct {
	store    store.Store
	cleaner  *Cleaner
	auditor  *Auditor
	health   *HealthReporter
	logger   *zap.Logger

	mu sync.Mutex
}

// IngestResult summarizes a completed ingestion run.
type IngestResult struct {
	RawCount     int                   `json:"raw_count"`
	CleanedCount int                   `json:"cleaned_count"`
	Skipped      int                   `json:"skipped"`
	Health       *model.HealthSnapshot `json:"health"`
}

// New creates a pipeline over the given store and embedder.
func New(st store.Store, embedder *embed.Embedder, outlierThreshold float64) (*Pipeline, error) {
	cleaner, err := NewCleaner(st, embedder)
	if err != nil {
		return nil, err
	}
	auditor, err := NewAuditor(st, outlierThreshold)
	if err != nil {
		return nil, err
	}
	health, err := NewHealthReporter(st)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		store:   st,
		cleaner: cleaner,
		auditor: auditor,
		health:  health,
		logger:  zap.L().Named("pipeline"),
	}, nil
}

// Ingest appends raw rows and runs the full downstream sequence.
func (p *Pipeline) Ingest(ctx context.Context, records []model.RawTender) (*IngestResult, error) {
	if len(records) == 0 {
		return nil, newStageError(StageIntake, ErrNoRecords)
	}

	metrics := NewRunMetrics(p.logger)

	if err := p.store.InsertRaw(ctx, records); err != nil {
		return nil, newStageError(StageIntake, err)
	}
	metrics.RecordIngestion(len(records))

	p.mu.Lock()
	defer p.mu.Unlock()

	cleaned, skipped, err := p.cleaner.CleanAll(ctx)
	if err != nil {
		return nil, newStageError(StageCleaning, err)
	}
	metrics.RecordCleaning(cleaned, skipped)

	entries, err := p.auditor.Run(ctx)
	if err != nil {
		return nil, newStageError(StageAudit, err)
	}

	snapshot, err := p.health.Recompute(ctx)
	if err != nil {
		return nil, newStageError(StageHealth, err)
	}
	metrics.RecordAudit(len(entries), snapshot.QualityScore)
	metrics.Finish()

	return &IngestResult{
		RawCount:     len(records),
		CleanedCount: cleaned,
		Skipped:      skipped,
		Health:       snapshot,
	}, nil
}

// Validate re-runs the audit and health recompute over the current data
// without touching the raw or cleaned generations.
func (p *Pipeline) Validate(ctx context.Context) (*model.HealthSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.auditor.Run(ctx); err != nil {
		return nil, newStageError(StageAudit, err)
	}

	snapshot, err := p.health.Recompute(ctx)
	if err != nil {
		return nil, newStageError(StageHealth, err)
	}
	return snapshot, nil
}
