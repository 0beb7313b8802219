// pkg/model/quality.go
package model

import (
	"time"
)

// Severity levels for quality findings. Only high and medium findings count
// against the pipeline health score.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Check types emitted by the quality auditor.
const (
	CheckNullDescriptions = "null_check"
	CheckDuplicates       = "duplicate_check"
	CheckValueOutliers    = "outlier_check"
)

// Pipeline health statuses.
const (
	StatusHealthy        = "healthy"
	StatusWarning        = "warning"
	StatusNotInitialized = "not_initialized"
)

// QualityLogEntry is one finding from a quality audit run. The quality log
// holds only the latest run: every audit replaces the whole set.
type QualityLogEntry struct {
	ID          string    `db:"id" json:"-"`
	CheckType   string    `db:"check_type" json:"check_type"`
	Severity    string    `db:"severity" json:"severity"`
	Message     string    `db:"message" json:"message"`
	Details     Payload   `db:"details" json:"details"`
	RecordCount int       `db:"record_count" json:"record_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// HealthSnapshot is the single current summary of pipeline state. The prior
// snapshot is deleted before a new one is written.
type HealthSnapshot struct {
	ID            string     `db:"id" json:"-"`
	Status        string     `db:"status" json:"status"`
	TotalRecords  int        `db:"total_records" json:"total_records"`
	CleanRecords  int        `db:"clean_records" json:"clean_records"`
	QualityScore  float64    `db:"quality_score" json:"quality_score"`
	LastIngestion *time.Time `db:"last_ingestion" json:"last_ingestion"`
	Errors        Payload    `db:"errors" json:"errors"`
	CreatedAt     time.Time  `db:"created_at" json:"-"`
}
