package automation

import (
	"fmt"

	"github.com/sells-group/outreach/internal/model"
)

// Stage names the pipeline step a collaborator failure came from.
type Stage string

const (
	StageAnalyze  Stage = "analyze"
	StageGenerate Stage = "generate"
	StagePipeline Stage = "pipeline"
)

// ConfigurationError reports that required collaborator configuration is
// missing or invalid. It is returned before any lead is read or written.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "automation: configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports a missing required input.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("automation: %s is required", e.Field)
}

// NotFoundError reports that a referenced lead or batch does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("automation: %s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return model.ErrNotFound }

// CollaboratorError wraps an analyzer or generator failure for one lead. It is
// recorded on the lead and never retried by the orchestrator.
type CollaboratorError struct {
	Stage Stage
	Err   error
}

func (e *CollaboratorError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// TransientWriteError reports that a lead's terminal result could not be
// written. The lead may remain in processing.
type TransientWriteError struct {
	LeadID string
	Status model.LeadStatus
	Err    error
}

func (e *TransientWriteError) Error() string {
	return fmt.Sprintf("automation: record %s result for lead %s: %v", e.Status, e.LeadID, e.Err)
}

func (e *TransientWriteError) Unwrap() error { return e.Err }
