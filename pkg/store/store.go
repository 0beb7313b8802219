// pkg/store/store.go
package store

import (
	"context"

	"github.com/tenderops/tender-ingress/pkg/model"
)

// Store is the durable keyed storage consumed by the pipeline stages and by
// similarity search. It holds the two record generations (raw and cleaned),
// the latest quality log and the singleton health snapshot.
//
// Writers are partitioned by entity: intake inserts raw rows, the cleaning
// stage upserts cleaned rows, the auditor replaces the quality log and the
// health aggregator replaces the snapshot. Search only reads.
type Store interface {
	// Raw generation (append-only)
	InsertRaw(ctx context.Context, records []model.RawTender) error
	AllRaw(ctx context.Context) ([]model.RawTender, error)
	CountRaw(ctx context.Context) (int, error)

	// Cleaned generation (at most one row per tender_id)
	UpsertCleaned(ctx context.Context, record model.CleanedTender) error
	ListCleaned(ctx context.Context, limit int) ([]model.CleanedTender, error)
	CountCleaned(ctx context.Context) (int, error)

	// Quality-rule predicates over the stored data
	CountMissingDescriptions(ctx context.Context) (int, error)
	DuplicateTenderIDs(ctx context.Context) ([]model.DuplicateGroup, error)
	CountValueOutliers(ctx context.Context, threshold float64) (int, error)

	// Quality log (latest audit only)
	ReplaceQualityLog(ctx context.Context, entries []model.QualityLogEntry) error
	QualityLog(ctx context.Context) ([]model.QualityLogEntry, error)
	CountIssues(ctx context.Context, severities ...string) (int, error)

	// Health snapshot (singleton)
	ReplaceHealth(ctx context.Context, snapshot model.HealthSnapshot) error
	Health(ctx context.Context) (*model.HealthSnapshot, error)

	// Similarity search over cleaned embeddings, ascending cosine distance
	SearchByEmbedding(ctx context.Context, vec []float32, limit int) ([]model.SearchHit, error)

	// Connection lifecycle
	Ping(ctx context.Context) error
	Close() error
}
