// pkg/pipeline/auditor.go
package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/model"
	"github.com/tenderops/tender-ingress/pkg/store"
)

// Auditor runs the rule-based quality checks over the current data and
// replaces the quality log with the findings. Checks always run in the same
// order: missing descriptions, duplicate tender IDs, value outliers.
type Auditor struct {
	store            store.Store
	outlierThreshold float64
	logger           *zap.Logger
}

// NewAuditor creates an auditor with the given outlier threshold.
func NewAuditor(st store.Store, outlierThreshold float64) (*Auditor, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if outlierThreshold <= 0 {
		return nil, fmt.Errorf("outlier threshold must be positive, got %v", outlierThreshold)
	}
	return &Auditor{
		store:            st,
		outlierThreshold: outlierThreshold,
		logger:           zap.L().Named("auditor"),
	}, nil
}

// Run executes all quality checks and persists the findings, replacing any
// previous audit. A clean dataset yields an empty log.
func (a *Auditor) Run(ctx context.Context) ([]model.QualityLogEntry, error) {
	entries := make([]model.QualityLogEntry, 0, 3)

	nullEntry, err := a.checkMissingDescriptions(ctx)
	if err != nil {
		return nil, err
	}
	if nullEntry != nil {
		entries = append(entries, *nullEntry)
	}

	dupEntry, err := a.checkDuplicates(ctx)
	if err != nil {
		return nil, err
	}
	if dupEntry != nil {
		entries = append(entries, *dupEntry)
	}

	outlierEntry, err := a.checkValueOutliers(ctx)
	if err != nil {
		return nil, err
	}
	if outlierEntry != nil {
		entries = append(entries, *outlierEntry)
	}

	if err := a.store.ReplaceQualityLog(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to persist quality log: %w", err)
	}

	a.logger.Info("Quality audit complete", zap.Int("findings", len(entries)))
	return entries, nil
}

func (a *Auditor) checkMissingDescriptions(ctx context.Context) (*model.QualityLogEntry, error) {
	total, err := a.store.CountCleaned(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count cleaned tenders: %w", err)
	}

	missing, err := a.store.CountMissingDescriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count missing descriptions: %w", err)
	}
	if missing == 0 {
		return nil, nil
	}

	percentage := 0.0
	if total > 0 {
		percentage = roundTo(float64(missing)/float64(total)*100, 2)
	}

	return &model.QualityLogEntry{
		ID:        uuid.NewString(),
		CheckType: model.CheckNullDescriptions,
		Severity:  model.SeverityHigh,
		Message:   "Missing descriptions detected",
		Details: model.Payload{
			"null_count": missing,
			"percentage": percentage,
		},
		RecordCount: missing,
	}, nil
}

func (a *Auditor) checkDuplicates(ctx context.Context) (*model.QualityLogEntry, error) {
	groups, err := a.store.DuplicateTenderIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate tender ids: %w", err)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.TenderID)
	}

	return &model.QualityLogEntry{
		ID:        uuid.NewString(),
		CheckType: model.CheckDuplicates,
		Severity:  model.SeverityMedium,
		Message:   "Duplicate tender IDs found",
		Details: model.Payload{
			"duplicate_ids": ids,
		},
		RecordCount: len(groups),
	}, nil
}

func (a *Auditor) checkValueOutliers(ctx context.Context) (*model.QualityLogEntry, error) {
	outliers, err := a.store.CountValueOutliers(ctx, a.outlierThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count value outliers: %w", err)
	}
	if outliers == 0 {
		return nil, nil
	}

	return &model.QualityLogEntry{
		ID:        uuid.NewString(),
		CheckType: model.CheckValueOutliers,
		Severity:  model.SeverityLow,
		Message:   "High value outliers detected",
		Details: model.Payload{
			"outlier_count": outliers,
		},
		RecordCount: outliers,
	}, nil
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
