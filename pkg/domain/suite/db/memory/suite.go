// in-memory suite repository. Counterpart of experiment/db/memory.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/modelyard/modelyard/pkg/domain"
	kdb "github.com/modelyard/modelyard/pkg/domain/suite/db"
	"github.com/modelyard/modelyard/pkg/utils/maps"
)

type suiteRepository struct {
	mu    sync.Mutex
	items map[string]*domain.Suite
}

func New() kdb.Interface {
	return &suiteRepository{items: map[string]*domain.Suite{}}
}

func (r *suiteRepository) Register(ctx context.Context, s *domain.Suite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[s.Id]; ok {
		return fmt.Errorf("%w: suite '%s' is already registered", domain.ErrInvalidStateChanging, s.Id)
	}
	stored := *s
	stored.Trials = append([]domain.Trial{}, s.Trials...)
	stored.ParamImportances = maps.Copy(s.ParamImportances)
	stored.Version = 1
	stored.UpdatedAt = time.Now()
	r.items[s.Id] = &stored
	return nil
}

func (r *suiteRepository) GetOne(ctx context.Context, id string) (*domain.Suite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[id]
	if !ok {
		return nil, domain.ErrMissing
	}
	snap := snapshot(s)
	return &snap, nil
}

func (r *suiteRepository) SetStatus(ctx context.Context, id string, newStatus domain.SuiteStatus, message string) error {
	return r.update(id, func(s *domain.Suite) error {
		if s.Status.IsTerminal() {
			return fmt.Errorf(
				"%w: suite '%s' is %s already", domain.ErrInvalidStateChanging, id, s.Status,
			)
		}
		s.Status = newStatus
		s.ErrorMessage = message
		return nil
	})
}

func (r *suiteRepository) AppendTrial(ctx context.Context, id string, trial domain.Trial) error {
	return r.update(id, func(s *domain.Suite) error {
		if 0 < s.TrialBudget && s.TrialBudget <= len(s.Trials) {
			return fmt.Errorf(
				"%w: suite '%s' exhausted its budget of %d trials",
				domain.ErrInvalidStateChanging, id, s.TrialBudget,
			)
		}
		s.Trials = append(s.Trials, trial)
		return nil
	})
}

func (r *suiteRepository) Finalize(ctx context.Context, id string, bestTrialIndex *int, importances map[string]float64) error {
	return r.update(id, func(s *domain.Suite) error {
		s.BestTrialIndex = bestTrialIndex
		s.ParamImportances = maps.Copy(importances)
		return nil
	})
}

func (r *suiteRepository) update(id string, mutate func(*domain.Suite) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[id]
	if !ok {
		return domain.ErrMissing
	}
	if err := mutate(s); err != nil {
		return err
	}
	s.Version += 1
	s.UpdatedAt = time.Now()
	return nil
}

func snapshot(s *domain.Suite) domain.Suite {
	snap := *s
	snap.Trials = append([]domain.Trial{}, s.Trials...)
	snap.ParamImportances = maps.Copy(s.ParamImportances)
	if s.BestTrialIndex != nil {
		best := *s.BestTrialIndex
		snap.BestTrialIndex = &best
	}
	return snap
}
