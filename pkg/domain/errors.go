package domain

import (
	"errors"
	"fmt"
)

var (
	// requested record is not found.
	ErrMissing = errors.New("missing")

	// input does not satisfy a precondition: unknown target column,
	// missing prerequisite artifact, and the like. Terminal for the
	// owning experiment.
	ErrValidation = errors.New("validation error")

	// configuration names something outside the closed sets this system
	// supports: unknown model family, malformed or empty search space.
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")

	// experiment tracker backend cannot be reached. Non-fatal: the
	// pipeline logs and proceeds without tracking.
	ErrTrackingBackendUnavailable = errors.New("tracking backend unavailable")

	// a single trial of a sweep failed. Recovered at the suite level by
	// recording the sentinel objective; never escapes the search loop.
	ErrTrialExecution = errors.New("trial execution failed")

	// any other failure inside a pipeline stage.
	ErrPipelineStage = errors.New("pipeline stage failed")

	ErrInvalidStateChanging = errors.New("cannot change state")
)

func NewErrInvalidStateChanging(from, to ExperimentStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStateChanging, from, to)
}

// a stage could not find the artifact a previous stage should have produced.
func NewErrMissingArtifact(name string) error {
	return fmt.Errorf("%w: missing prerequisite artifact '%s'", ErrValidation, name)
}

func NewErrMissingTargetColumn(column, datasource string) error {
	return fmt.Errorf(
		"%w: datasource '%s' has no column '%s'", ErrValidation, datasource, column,
	)
}
