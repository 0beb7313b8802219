// pkg/pipeline/metrics.go
package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunMetrics tracks counters for a single pipeline run
type RunMetrics struct {
	mu     sync.Mutex
	logger *zap.Logger

	StartTime      time.Time
	EndTime        time.Time
	RawIngested    int
	RecordsCleaned int
	RecordsSkipped int
	IssuesFound    int
	QualityScore   float64
}

// NewRunMetrics creates a new RunMetrics instance
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		StartTime: time.Now(),
		logger:    logger,
	}
}

// Duration returns the total duration of the run
func (rm *RunMetrics) Duration() time.Duration {
	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

// RecordIngestion records the number of raw rows accepted
func (rm *RunMetrics) RecordIngestion(count int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.RawIngested += count
}

// RecordCleaning records the outcome of the cleaning stage
func (rm *RunMetrics) RecordCleaning(cleaned, skipped int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.RecordsCleaned = cleaned
	rm.RecordsSkipped = skipped
}

// RecordAudit records the outcome of the audit and health stages
func (rm *RunMetrics) RecordAudit(issues int, score float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.IssuesFound = issues
	rm.QualityScore = score
}

// Finish marks the run complete and logs a summary
func (rm *RunMetrics) Finish() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.EndTime = time.Now()

	if rm.logger != nil {
		rm.logger.Info("Pipeline run complete",
			zap.Duration("duration", rm.EndTime.Sub(rm.StartTime)),
			zap.Int("rawIngested", rm.RawIngested),
			zap.Int("recordsCleaned", rm.RecordsCleaned),
			zap.Int("recordsSkipped", rm.RecordsSkipped),
			zap.Int("issuesFound", rm.IssuesFound),
			zap.Float64("qualityScore", rm.QualityScore))
	}
}
