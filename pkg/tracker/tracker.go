// Package tracker is the narrow adapter to the experiment tracking backend.
//
// The pipeline records parameters, metrics and tags against an opaque run id
// and registers finished models. Tracking is best-effort: when the backend is
// unreachable, callers log a warning and proceed with a Nop run rather than
// aborting the pipeline.
package tracker

import (
	"context"
)

type RunStatus string

const (
	RunFinished RunStatus = "FINISHED"
	RunFailed   RunStatus = "FAILED"
)

type ModelVersion struct {
	Name    string
	Version string
}

// Run is one tracked run at the backend.
type Run interface {
	// Id is the backend's opaque run id.
	Id() string

	LogParams(ctx context.Context, params map[string]string) error
	LogMetrics(ctx context.Context, metrics map[string]float64) error
	SetTags(ctx context.Context, tags map[string]string) error

	// RegisterModel registers the model blob as a new version under name.
	RegisterModel(ctx context.Context, model []byte, name string) (ModelVersion, error)

	// End closes the run with the given status.
	End(ctx context.Context, status RunStatus) error
}

type Tracker interface {
	// StartOrResumeRun starts a new run (runId == nil) or resumes an
	// existing one. Failure to reach the backend is reported as
	// domain.ErrTrackingBackendUnavailable.
	StartOrResumeRun(ctx context.Context, runId *string, name string) (Run, error)
}
