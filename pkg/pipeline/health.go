// pkg/pipeline/health.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/model"
	"github.com/tenderops/tender-ingress/pkg/store"
)

// HealthReporter derives the pipeline health snapshot from the row counts
// and the latest audit. Each medium or high severity finding costs ten
// points off a perfect score; above 70 the pipeline counts as healthy.
type HealthReporter struct {
	store  store.Store
	logger *zap.Logger
}

// NewHealthReporter creates a health reporter backed by the given store.
func NewHealthReporter(st store.Store) (*HealthReporter, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &HealthReporter{
		store:  st,
		logger: zap.L().Named("health"),
	}, nil
}

// Recompute builds a fresh snapshot from the current state and replaces the
// stored one.
func (h *HealthReporter) Recompute(ctx context.Context) (*model.HealthSnapshot, error) {
	total, err := h.store.CountRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count raw tenders: %w", err)
	}

	clean, err := h.store.CountCleaned(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count cleaned tenders: %w", err)
	}

	// Low-severity findings are informational and do not cost points.
	issues, err := h.store.CountIssues(ctx,
		model.SeverityMedium, model.SeverityHigh)
	if err != nil {
		return nil, fmt.Errorf("failed to count quality issues: %w", err)
	}

	score := 100 - 10*float64(issues)
	if score < 0 {
		score = 0
	}

	status := model.StatusWarning
	if score > 70 {
		status = model.StatusHealthy
	}

	now := time.Now().UTC()
	snapshot := model.HealthSnapshot{
		ID:            uuid.NewString(),
		Status:        status,
		TotalRecords:  total,
		CleanRecords:  clean,
		QualityScore:  score,
		LastIngestion: &now,
		Errors: model.Payload{
			"issue_count": issues,
		},
	}

	if err := h.store.ReplaceHealth(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist health snapshot: %w", err)
	}

	h.logger.Info("Health snapshot updated",
		zap.String("status", status),
		zap.Float64("qualityScore", score),
		zap.Int("totalRecords", total),
		zap.Int("cleanRecords", clean),
		zap.Int("issues", issues))
	return &snapshot, nil
}
