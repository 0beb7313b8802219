// pkg/pipeline/cleaner.go
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/embed"
	"github.com/tenderops/tender-ingress/pkg/model"
	"github.com/tenderops/tender-ingress/pkg/store"
)

// Cleaner regenerates the cleaned generation from the raw rows. Each raw row
// is normalized, embedded and upserted by its business key, so re-running the
// cleaner over the same raw data is a no-op.
type Cleaner struct {
	store    store.Store
	embedder *embed.Embedder
	logger   *zap.Logger
}

// NewCleaner creates a cleaner backed by the given store and embedder.
func NewCleaner(st store.Store, embedder *embed.Embedder) (*Cleaner, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	return &Cleaner{
		store:    st,
		embedder: embedder,
		logger:   zap.L().Named("cleaner"),
	}, nil
}

// CleanAll processes every raw row. Rows that fail to upsert are skipped and
// counted; a failure to read the raw generation aborts the run.
func (c *Cleaner) CleanAll(ctx context.Context) (cleaned, skipped int, err error) {
	raw, err := c.store.AllRaw(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load raw tenders: %w", err)
	}

	for _, r := range raw {
		record := c.clean(r)
		if upsertErr := c.store.UpsertCleaned(ctx, record); upsertErr != nil {
			c.logger.Warn("Skipping tender that failed to upsert",
				zap.String("tenderID", record.TenderID),
				zap.Error(upsertErr))
			skipped++
			continue
		}
		cleaned++
	}

	c.logger.Info("Cleaning pass complete",
		zap.Int("rawRows", len(raw)),
		zap.Int("cleaned", cleaned),
		zap.Int("skipped", skipped))
	return cleaned, skipped, nil
}

// clean normalizes a raw row and computes its embedding.
func (c *Cleaner) clean(r model.RawTender) model.CleanedTender {
	title := strings.TrimSpace(r.Title)
	description := strings.TrimSpace(r.Description)

	return model.CleanedTender{
		ID:            r.ID,
		TenderID:      strings.TrimSpace(r.TenderID),
		Title:         title,
		Description:   description,
		Organization:  strings.TrimSpace(r.Organization),
		Category:      strings.TrimSpace(r.Category),
		Value:         r.Value,
		Currency:      strings.ToUpper(strings.TrimSpace(r.Currency)),
		PublishedDate: parseDate(r.PublishedDate),
		Deadline:      parseDate(r.Deadline),
		Location:      strings.TrimSpace(r.Location),
		Status:        strings.TrimSpace(r.Status),
		Embedding:     c.embedder.Embed(description),
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	time.RFC3339,
}

// parseDate parses free-text dates from source systems. Unparseable values
// become nil rather than failing the row.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := t.UTC().Truncate(24 * time.Hour)
			return &d
		}
	}
	return nil
}
