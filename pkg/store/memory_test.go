// pkg/store/memory_test.go
package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderops/tender-ingress/pkg/model"
)

func cleanedFixture(id, tenderID, description string, value float64, embedding []float32) model.CleanedTender {
	return model.CleanedTender{
		ID:           id,
		TenderID:     tenderID,
		Title:        "Tender " + tenderID,
		Description:  description,
		Organization: "Dept of Works",
		Category:     "Construction",
		Value:        value,
		Currency:     "USD",
		Status:       "Open",
		Embedding:    embedding,
	}
}

func TestMemoryUpsertCleanedPartialOverwrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := cleanedFixture("a", "T-1", "original description", 100, []float32{1, 0, 0})
	require.NoError(t, m.UpsertCleaned(ctx, first))

	second := cleanedFixture("b", "T-1", "revised description", 900, []float32{0, 1, 0})
	second.Title = "Revised title"
	second.Organization = "Other Org"
	require.NoError(t, m.UpsertCleaned(ctx, second))

	count, err := m.CountCleaned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	records, err := m.ListCleaned(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	// Re-cleaned fields follow the newest row
	assert.Equal(t, "Revised title", got.Title)
	assert.Equal(t, "revised description", got.Description)
	assert.Equal(t, []float32{0, 1, 0}, got.Embedding)
	// Identity fields keep their first-seen values
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "Dept of Works", got.Organization)
	assert.Equal(t, 100.0, got.Value)
}

func TestMemoryDuplicateTenderIDs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rows := []model.RawTender{
		{ID: "1", TenderID: "T-1"},
		{ID: "2", TenderID: "T-2"},
		{ID: "3", TenderID: "T-1"},
		{ID: "4", TenderID: "T-3"},
		{ID: "5", TenderID: "T-1"},
		{ID: "6", TenderID: "T-3"},
	}
	require.NoError(t, m.InsertRaw(ctx, rows))

	groups, err := m.DuplicateTenderIDs(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, model.DuplicateGroup{TenderID: "T-1", Count: 3}, groups[0])
	assert.Equal(t, model.DuplicateGroup{TenderID: "T-3", Count: 2}, groups[1])
}

func TestMemoryQualityPredicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.UpsertCleaned(ctx, cleanedFixture("a", "T-1", "", 100, nil)))
	require.NoError(t, m.UpsertCleaned(ctx, cleanedFixture("b", "T-2", "fine", 2e9, nil)))
	require.NoError(t, m.UpsertCleaned(ctx, cleanedFixture("c", "T-3", "", 5e8, nil)))

	missing, err := m.CountMissingDescriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, missing)

	outliers, err := m.CountValueOutliers(ctx, 1e9)
	require.NoError(t, err)
	assert.Equal(t, 1, outliers)
}

func TestMemoryReplaceQualityLog(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := []model.QualityLogEntry{
		{ID: "1", CheckType: model.CheckNullDescriptions, Severity: model.SeverityHigh},
		{ID: "2", CheckType: model.CheckDuplicates, Severity: model.SeverityMedium},
	}
	require.NoError(t, m.ReplaceQualityLog(ctx, first))

	n, err := m.CountIssues(ctx, model.SeverityHigh, model.SeverityMedium)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A later audit fully replaces the previous findings
	second := []model.QualityLogEntry{
		{ID: "3", CheckType: model.CheckValueOutliers, Severity: model.SeverityLow},
	}
	require.NoError(t, m.ReplaceQualityLog(ctx, second))

	entries, err := m.QualityLog(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.CheckValueOutliers, entries[0].CheckType)

	n, err = m.CountIssues(ctx, model.SeverityHigh, model.SeverityMedium)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryHealthSingleton(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	snapshot, err := m.Health(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	require.NoError(t, m.ReplaceHealth(ctx, model.HealthSnapshot{ID: "1", Status: model.StatusWarning, QualityScore: 80}))
	require.NoError(t, m.ReplaceHealth(ctx, model.HealthSnapshot{ID: "2", Status: model.StatusHealthy, QualityScore: 100}))

	snapshot, err = m.Health(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "2", snapshot.ID)
	assert.Equal(t, model.StatusHealthy, snapshot.Status)
}

func TestMemorySearchByEmbedding(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.UpsertCleaned(ctx, cleanedFixture("a", "T-1", "roads", 1, []float32{1, 0, 0})))
	require.NoError(t, m.UpsertCleaned(ctx, cleanedFixture("b", "T-2", "bridges", 1, []float32{0.7071, 0.7071, 0})))
	require.NoError(t, m.UpsertCleaned(ctx, cleanedFixture("c", "T-3", "", 1, []float32{0, 0, 0})))

	hits, err := m.SearchByEmbedding(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "T-1", hits[0].TenderID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "T-2", hits[1].TenderID)
	assert.InDelta(t, 0.7071, hits[1].Similarity, 1e-3)
	// Zero-vector rows carry no signal and rank last
	assert.Equal(t, "T-3", hits[2].TenderID)
	assert.Equal(t, 0.0, hits[2].Similarity)

	limited, err := m.SearchByEmbedding(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "T-1", limited[0].TenderID)
}

func TestMemoryRejectsNegativeLimits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.UpsertCleaned(ctx, cleanedFixture("a", "T-1", "roads", 1, []float32{1, 0, 0})))

	_, err := m.ListCleaned(ctx, -1)
	assert.Error(t, err)

	_, err = m.SearchByEmbedding(ctx, []float32{1, 0, 0}, -1)
	assert.Error(t, err)
}
