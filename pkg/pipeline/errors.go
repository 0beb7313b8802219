// pkg/pipeline/errors.go
package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies where in the pipeline a failure happened
type Stage int

const (
	StageIntake Stage = iota
	StageCleaning
	StageAudit
	StageHealth
)

// String returns a string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageIntake:
		return "intake"
	case StageCleaning:
		return "cleaning"
	case StageAudit:
		return "audit"
	case StageHealth:
		return "health"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// StageError wraps an error with the pipeline stage it occurred in
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the pipeline stage an error belongs to, or false when the
// error did not originate in a pipeline stage.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}

// ErrNoRecords indicates an ingestion request carried no rows.
var ErrNoRecords = errors.New("no records to ingest")
