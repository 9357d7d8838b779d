package db

import (
	"context"

	"github.com/modelyard/modelyard/pkg/domain"
)

type Interface interface {
	// Register stores a new suite in Draft.
	Register(ctx context.Context, s *domain.Suite) error

	// GetOne gets a single suite, or ErrMissing.
	GetOne(ctx context.Context, id string) (*domain.Suite, error)

	// SetStatus updates status, with error message for SuiteFailed.
	//
	// A terminal suite (completed/failed) refuses further changes with
	// ErrInvalidStateChanging.
	SetStatus(ctx context.Context, id string, newStatus domain.SuiteStatus, message string) error

	// AppendTrial appends one entry to the suite's trial ledger.
	// The ledger never exceeds the suite's trial budget.
	AppendTrial(ctx context.Context, id string, trial domain.Trial) error

	// Finalize writes the best trial index and parameter importances.
	// Both are written once, at completion.
	Finalize(ctx context.Context, id string, bestTrialIndex *int, importances map[string]float64) error
}
