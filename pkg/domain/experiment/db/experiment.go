package db

import (
	"context"

	"github.com/modelyard/modelyard/pkg/domain"
)

type Interface interface {
	// Register stores a new experiment. Its status must be Draft or Queued.
	Register(ctx context.Context, ex *domain.Experiment) error

	// Get experiments by ids.
	//
	// The returned map contains an entry per found id; missing ids are
	// simply absent. Use GetOne when absence is an error.
	Get(ctx context.Context, ids []string) (map[string]domain.Experiment, error)

	// GetOne gets a single experiment, or ErrMissing.
	GetOne(ctx context.Context, id string) (*domain.Experiment, error)

	// Find ids of experiments, filtered by owning suite and/or status.
	// Nil/empty dimensions match any.
	Find(ctx context.Context, query domain.ExperimentFindQuery) ([]string, error)

	// SetStatus updates status.
	//
	// Returns ErrInvalidStateChanging when the transition is not legal for
	// the pipeline state machine, ErrMissing when no such experiment.
	SetStatus(ctx context.Context, id string, newStatus domain.ExperimentStatus) error

	// SetError flips status to Errored and persists the message.
	SetError(ctx context.Context, id string, message string) error

	// SetStage persists the index of the next stage to execute.
	SetStage(ctx context.Context, id string, stage int) error

	// AddArtifact appends one stage-output-name -> path entry.
	// Artifact paths only grow; re-adding an existing name overwrites its
	// path but never removes others.
	AddArtifact(ctx context.Context, id string, name string, path string) error

	// SetResults stores metrics and the prediction sample.
	SetResults(ctx context.Context, id string, results domain.Results) error

	// SetTrackingRunId binds the opaque tracker run id.
	SetTrackingRunId(ctx context.Context, id string, runId string) error

	// Retry resets a terminal-in-error experiment back to Queued, clearing
	// error message and stage progress. Artifact paths survive so the
	// pipeline can resume over them.
	//
	// Returns ErrInvalidStateChanging unless status is Errored or Cancelled.
	Retry(ctx context.Context, id string) error
}
