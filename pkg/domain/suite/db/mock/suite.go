package mock

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/internal/mockutil"
	kdb "github.com/modelyard/modelyard/pkg/domain/suite/db"
)

type SuiteInterface struct {
	Impl struct {
		Register    func(ctx context.Context, s *domain.Suite) error
		GetOne      func(ctx context.Context, id string) (*domain.Suite, error)
		SetStatus   func(ctx context.Context, id string, newStatus domain.SuiteStatus, message string) error
		AppendTrial func(ctx context.Context, id string, trial domain.Trial) error
		Finalize    func(ctx context.Context, id string, bestTrialIndex *int, importances map[string]float64) error
	}

	Calls struct {
		Register  mockutil.CallLog[*domain.Suite]
		GetOne    mockutil.CallLog[string]
		SetStatus mockutil.CallLog[struct {
			Id        string
			NewStatus domain.SuiteStatus
			Message   string
		}]
		AppendTrial mockutil.CallLog[struct {
			Id    string
			Trial domain.Trial
		}]
		Finalize mockutil.CallLog[struct {
			Id             string
			BestTrialIndex *int
			Importances    map[string]float64
		}]
	}
}

func NewSuiteInterface() *SuiteInterface {
	return &SuiteInterface{}
}

var _ kdb.Interface = &SuiteInterface{}

func (m *SuiteInterface) Register(ctx context.Context, s *domain.Suite) error {
	m.Calls.Register = append(m.Calls.Register, s)
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, s)
	}
	panic(errors.New("it should not be called"))
}

func (m *SuiteInterface) GetOne(ctx context.Context, id string) (*domain.Suite, error) {
	m.Calls.GetOne = append(m.Calls.GetOne, id)
	if m.Impl.GetOne != nil {
		return m.Impl.GetOne(ctx, id)
	}
	panic(errors.New("it should not be called"))
}

func (m *SuiteInterface) SetStatus(ctx context.Context, id string, newStatus domain.SuiteStatus, message string) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, struct {
		Id        string
		NewStatus domain.SuiteStatus
		Message   string
	}{Id: id, NewStatus: newStatus, Message: message})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, id, newStatus, message)
	}
	panic(errors.New("it should not be called"))
}

func (m *SuiteInterface) AppendTrial(ctx context.Context, id string, trial domain.Trial) error {
	m.Calls.AppendTrial = append(m.Calls.AppendTrial, struct {
		Id    string
		Trial domain.Trial
	}{Id: id, Trial: trial})
	if m.Impl.AppendTrial != nil {
		return m.Impl.AppendTrial(ctx, id, trial)
	}
	panic(errors.New("it should not be called"))
}

func (m *SuiteInterface) Finalize(ctx context.Context, id string, bestTrialIndex *int, importances map[string]float64) error {
	m.Calls.Finalize = append(m.Calls.Finalize, struct {
		Id             string
		BestTrialIndex *int
		Importances    map[string]float64
	}{Id: id, BestTrialIndex: bestTrialIndex, Importances: importances})
	if m.Impl.Finalize != nil {
		return m.Impl.Finalize(ctx, id, bestTrialIndex, importances)
	}
	panic(errors.New("it should not be called"))
}
