// in-memory experiment repository.
//
// Backs single-node deployments without postgres, and most tests.
// Semantics (legal transitions, append-only artifacts, retry-reset) are the
// same as the postgres implementation.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/modelyard/modelyard/pkg/domain"
	kdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	"github.com/modelyard/modelyard/pkg/utils/maps"
	"github.com/modelyard/modelyard/pkg/utils/slices"
)

type experimentRepository struct {
	mu    sync.Mutex
	items map[string]*domain.Experiment
}

func New() kdb.Interface {
	return &experimentRepository{items: map[string]*domain.Experiment{}}
}

func (r *experimentRepository) Register(ctx context.Context, ex *domain.Experiment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[ex.Id]; ok {
		return domain.NewErrInvalidStateChanging(r.items[ex.Id].Status, ex.Status)
	}
	stored := *ex
	stored.Hyperparameters = maps.Copy(ex.Hyperparameters)
	stored.ArtifactPaths = maps.Copy(ex.ArtifactPaths)
	if stored.ArtifactPaths == nil {
		stored.ArtifactPaths = map[string]string{}
	}
	stored.Version = 1
	stored.UpdatedAt = time.Now()
	r.items[ex.Id] = &stored
	return nil
}

func (r *experimentRepository) Get(ctx context.Context, ids []string) (map[string]domain.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := map[string]domain.Experiment{}
	for _, id := range ids {
		if ex, ok := r.items[id]; ok {
			found[id] = snapshot(ex)
		}
	}
	return found, nil
}

func (r *experimentRepository) GetOne(ctx context.Context, id string) (*domain.Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ex, ok := r.items[id]
	if !ok {
		return nil, domain.ErrMissing
	}
	snap := snapshot(ex)
	return &snap, nil
}

func (r *experimentRepository) Find(ctx context.Context, query domain.ExperimentFindQuery) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := []string{}
	for id, ex := range r.items {
		if len(query.ProjectId) != 0 && slices.IndexOf(query.ProjectId, ex.ProjectId) < 0 {
			continue
		}
		if len(query.SuiteId) != 0 {
			if ex.SuiteId == nil || slices.IndexOf(query.SuiteId, *ex.SuiteId) < 0 {
				continue
			}
		}
		if len(query.Status) != 0 && slices.IndexOf(query.Status, ex.Status) < 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *experimentRepository) SetStatus(ctx context.Context, id string, newStatus domain.ExperimentStatus) error {
	return r.update(id, func(ex *domain.Experiment) error {
		if !ex.Status.CanTransitTo(newStatus) {
			return domain.NewErrInvalidStateChanging(ex.Status, newStatus)
		}
		ex.Status = newStatus
		return nil
	})
}

func (r *experimentRepository) SetError(ctx context.Context, id string, message string) error {
	return r.update(id, func(ex *domain.Experiment) error {
		if !ex.Status.CanTransitTo(domain.Errored) {
			return domain.NewErrInvalidStateChanging(ex.Status, domain.Errored)
		}
		ex.Status = domain.Errored
		ex.ErrorMessage = message
		return nil
	})
}

func (r *experimentRepository) SetStage(ctx context.Context, id string, stage int) error {
	return r.update(id, func(ex *domain.Experiment) error {
		ex.CurrentStage = stage
		return nil
	})
}

func (r *experimentRepository) AddArtifact(ctx context.Context, id string, name string, path string) error {
	return r.update(id, func(ex *domain.Experiment) error {
		ex.ArtifactPaths[name] = path
		return nil
	})
}

func (r *experimentRepository) SetResults(ctx context.Context, id string, results domain.Results) error {
	return r.update(id, func(ex *domain.Experiment) error {
		ex.Results = &results
		return nil
	})
}

func (r *experimentRepository) SetTrackingRunId(ctx context.Context, id string, runId string) error {
	return r.update(id, func(ex *domain.Experiment) error {
		ex.TrackingRunId = &runId
		return nil
	})
}

func (r *experimentRepository) Retry(ctx context.Context, id string) error {
	return r.update(id, func(ex *domain.Experiment) error {
		if !ex.Status.CanTransitTo(domain.Queued) {
			return domain.NewErrInvalidStateChanging(ex.Status, domain.Queued)
		}
		// artifact paths survive the reset: stages resume over them.
		ex.Status = domain.Queued
		ex.ErrorMessage = ""
		ex.CurrentStage = 0
		return nil
	})
}

func (r *experimentRepository) update(id string, mutate func(*domain.Experiment) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ex, ok := r.items[id]
	if !ok {
		return domain.ErrMissing
	}
	if err := mutate(ex); err != nil {
		return err
	}
	ex.Version += 1
	ex.UpdatedAt = time.Now()
	return nil
}

func snapshot(ex *domain.Experiment) domain.Experiment {
	snap := *ex
	snap.Hyperparameters = maps.Copy(ex.Hyperparameters)
	snap.ArtifactPaths = maps.Copy(ex.ArtifactPaths)
	if ex.Results != nil {
		res := *ex.Results
		res.Metrics = maps.Copy(ex.Results.Metrics)
		snap.Results = &res
	}
	return snap
}
