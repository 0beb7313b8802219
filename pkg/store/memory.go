// pkg/store/memory.go
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/model"
)

// Memory is an in-process Store used for tests and for running the service
// without a database. All methods are safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	raw        []model.RawTender
	cleaned    []model.CleanedTender
	cleanedIdx map[string]int // tender_id -> index into cleaned
	qualityLog []model.QualityLogEntry
	health     *model.HealthSnapshot

	logger *zap.Logger
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cleanedIdx: make(map[string]int),
		logger:     zap.L().Named("memory-store"),
	}
}

func (m *Memory) InsertRaw(_ context.Context, records []model.RawTender) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, r := range records {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		m.raw = append(m.raw, r)
	}
	return nil
}

func (m *Memory) AllRaw(_ context.Context) ([]model.RawTender, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.RawTender, len(m.raw))
	copy(out, m.raw)
	return out, nil
}

func (m *Memory) CountRaw(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.raw), nil
}

func (m *Memory) UpsertCleaned(_ context.Context, record model.CleanedTender) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.cleanedIdx[record.TenderID]; ok {
		// Keyed rows keep their first-seen identity; only the
		// re-cleaned fields are refreshed.
		existing := &m.cleaned[idx]
		existing.Title = record.Title
		existing.Description = record.Description
		existing.Embedding = record.Embedding
		return nil
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	m.cleaned = append(m.cleaned, record)
	m.cleanedIdx[record.TenderID] = len(m.cleaned) - 1
	return nil
}

func (m *Memory) ListCleaned(_ context.Context, limit int) ([]model.CleanedTender, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %d", limit)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.CleanedTender, len(m.cleaned))
	copy(out, m.cleaned)
	// Newest first; insertion order breaks timestamp ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountCleaned(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cleaned), nil
}

func (m *Memory) CountMissingDescriptions(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.cleaned {
		if r.Description == "" {
			n++
		}
	}
	return n, nil
}

func (m *Memory) DuplicateTenderIDs(_ context.Context) ([]model.DuplicateGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, r := range m.raw {
		counts[r.TenderID]++
	}

	var groups []model.DuplicateGroup
	for id, n := range counts {
		if n > 1 {
			groups = append(groups, model.DuplicateGroup{TenderID: id, Count: n})
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].TenderID < groups[j].TenderID
	})
	return groups, nil
}

func (m *Memory) CountValueOutliers(_ context.Context, threshold float64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.cleaned {
		if r.Value > threshold {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ReplaceQualityLog(_ context.Context, entries []model.QualityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.qualityLog = make([]model.QualityLogEntry, len(entries))
	copy(m.qualityLog, entries)
	return nil
}

func (m *Memory) QualityLog(_ context.Context) ([]model.QualityLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.QualityLogEntry, len(m.qualityLog))
	copy(out, m.qualityLog)
	return out, nil
}

func (m *Memory) CountIssues(_ context.Context, severities ...string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(severities))
	for _, s := range severities {
		wanted[s] = true
	}

	n := 0
	for _, e := range m.qualityLog {
		if wanted[e.Severity] {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ReplaceHealth(_ context.Context, snapshot model.HealthSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.health = &snapshot
	return nil
}

func (m *Memory) Health(_ context.Context) (*model.HealthSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.health == nil {
		return nil, nil
	}
	snapshot := *m.health
	return &snapshot, nil
}

func (m *Memory) SearchByEmbedding(_ context.Context, vec []float32, limit int) ([]model.SearchHit, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %d", limit)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]model.SearchHit, 0, len(m.cleaned))
	for _, r := range m.cleaned {
		hits = append(hits, model.SearchHit{
			CleanedTender: r,
			Similarity:    cosineSimilarity(vec, r.Embedding),
		})
	}

	// Stable sort so zero-vector rows keep insertion order at the tail.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector has no magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
