// Package artifacts is the path-addressable per-experiment artifact store.
//
// Artifacts are named byte blobs produced by one pipeline stage and consumed
// by a later stage or by result reporting. A stage never reads its
// predecessor's output from in-process memory; it always goes through here.
package artifacts

import (
	"context"
)

// well-known artifact names.
const (
	Train             = "train"
	Test              = "test"
	Full              = "full"
	Model             = "model"
	Metrics           = "metrics"
	Predictions       = "predictions"
	FeatureImportance = "feature_importance"
	CVResults         = "cv_results"
)

type Store interface {
	// Write persists data under (experimentId, name) and returns the path
	// the blob is addressable at.
	Write(ctx context.Context, experimentId string, name string, data []byte) (path string, err error)

	// Read loads the blob at (experimentId, name).
	// Returns domain.ErrMissing when nothing has been written there.
	Read(ctx context.Context, experimentId string, name string) ([]byte, error)
}
