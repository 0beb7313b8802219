// pkg/model/tender.go
package model

import (
	"time"
)

// RawTender is one ingested row, exactly as it arrived. Raw rows are
// append-only: every ingestion creates fresh rows with fresh internal IDs,
// so re-ingesting a file duplicates its raw rows. The audit surfaces that.
type RawTender struct {
	ID            string    `db:"id" json:"id"`
	TenderID      string    `db:"tender_id" json:"tender_id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	Organization  string    `db:"organization" json:"organization"`
	Category      string    `db:"category" json:"category"`
	Value         float64   `db:"value" json:"value"`
	Currency      string    `db:"currency" json:"currency"`
	PublishedDate string    `db:"published_date" json:"published_date"` // free text, normalized during cleaning
	Deadline      string    `db:"deadline" json:"deadline"`
	Location      string    `db:"location" json:"location"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CleanedTender is the normalized generation of a tender, keyed uniquely by
// TenderID. Dates are parsed to calendar dates (nil when unparseable) and the
// description carries a fixed-length embedding. The all-zero vector is the
// sentinel for "no usable text".
type CleanedTender struct {
	ID            string     `db:"id" json:"id"`
	TenderID      string     `db:"tender_id" json:"tender_id"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	Organization  string     `db:"organization" json:"organization"`
	Category      string     `db:"category" json:"category"`
	Value         float64    `db:"value" json:"value"`
	Currency      string     `db:"currency" json:"currency"`
	PublishedDate *time.Time `db:"published_date" json:"published_date"`
	Deadline      *time.Time `db:"deadline" json:"deadline"`
	Location      string     `db:"location" json:"location"`
	Status        string     `db:"status" json:"status"`
	Embedding     []float32  `db:"-" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// SearchHit is a cleaned tender annotated with its similarity to a query.
type SearchHit struct {
	CleanedTender
	Similarity float64 `json:"similarity"`
}

// DuplicateGroup describes one business key that was ingested more than once.
type DuplicateGroup struct {
	TenderID string `db:"tender_id"`
	Count    int    `db:"dup_count"`
}
