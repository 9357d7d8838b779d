package mock

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/domain"
	kdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	"github.com/modelyard/modelyard/pkg/domain/internal/mockutil"
)

type ExperimentInterface struct {
	Impl struct {
		Register         func(ctx context.Context, ex *domain.Experiment) error
		Get              func(ctx context.Context, ids []string) (map[string]domain.Experiment, error)
		GetOne           func(ctx context.Context, id string) (*domain.Experiment, error)
		Find             func(ctx context.Context, query domain.ExperimentFindQuery) ([]string, error)
		SetStatus        func(ctx context.Context, id string, newStatus domain.ExperimentStatus) error
		SetError         func(ctx context.Context, id string, message string) error
		SetStage         func(ctx context.Context, id string, stage int) error
		AddArtifact      func(ctx context.Context, id string, name string, path string) error
		SetResults       func(ctx context.Context, id string, results domain.Results) error
		SetTrackingRunId func(ctx context.Context, id string, runId string) error
		Retry            func(ctx context.Context, id string) error
	}

	Calls struct {
		Register  mockutil.CallLog[*domain.Experiment]
		Get       mockutil.CallLog[[]string]
		GetOne    mockutil.CallLog[string]
		Find      mockutil.CallLog[domain.ExperimentFindQuery]
		SetStatus mockutil.CallLog[struct {
			Id        string
			NewStatus domain.ExperimentStatus
		}]
		SetError mockutil.CallLog[struct {
			Id      string
			Message string
		}]
		SetStage mockutil.CallLog[struct {
			Id    string
			Stage int
		}]
		AddArtifact mockutil.CallLog[struct {
			Id   string
			Name string
			Path string
		}]
		SetResults mockutil.CallLog[struct {
			Id      string
			Results domain.Results
		}]
		SetTrackingRunId mockutil.CallLog[struct {
			Id    string
			RunId string
		}]
		Retry mockutil.CallLog[string]
	}
}

func NewExperimentInterface() *ExperimentInterface {
	return &ExperimentInterface{}
}

var _ kdb.Interface = &ExperimentInterface{}

func (m *ExperimentInterface) Register(ctx context.Context, ex *domain.Experiment) error {
	m.Calls.Register = append(m.Calls.Register, ex)
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, ex)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) Get(ctx context.Context, ids []string) (map[string]domain.Experiment, error) {
	m.Calls.Get = append(m.Calls.Get, ids)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, ids)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) GetOne(ctx context.Context, id string) (*domain.Experiment, error) {
	m.Calls.GetOne = append(m.Calls.GetOne, id)
	if m.Impl.GetOne != nil {
		return m.Impl.GetOne(ctx, id)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) Find(ctx context.Context, query domain.ExperimentFindQuery) ([]string, error) {
	m.Calls.Find = append(m.Calls.Find, query)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) SetStatus(ctx context.Context, id string, newStatus domain.ExperimentStatus) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, struct {
		Id        string
		NewStatus domain.ExperimentStatus
	}{Id: id, NewStatus: newStatus})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, id, newStatus)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) SetError(ctx context.Context, id string, message string) error {
	m.Calls.SetError = append(m.Calls.SetError, struct {
		Id      string
		Message string
	}{Id: id, Message: message})
	if m.Impl.SetError != nil {
		return m.Impl.SetError(ctx, id, message)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) SetStage(ctx context.Context, id string, stage int) error {
	m.Calls.SetStage = append(m.Calls.SetStage, struct {
		Id    string
		Stage int
	}{Id: id, Stage: stage})
	if m.Impl.SetStage != nil {
		return m.Impl.SetStage(ctx, id, stage)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) AddArtifact(ctx context.Context, id string, name string, path string) error {
	m.Calls.AddArtifact = append(m.Calls.AddArtifact, struct {
		Id   string
		Name string
		Path string
	}{Id: id, Name: name, Path: path})
	if m.Impl.AddArtifact != nil {
		return m.Impl.AddArtifact(ctx, id, name, path)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) SetResults(ctx context.Context, id string, results domain.Results) error {
	m.Calls.SetResults = append(m.Calls.SetResults, struct {
		Id      string
		Results domain.Results
	}{Id: id, Results: results})
	if m.Impl.SetResults != nil {
		return m.Impl.SetResults(ctx, id, results)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) SetTrackingRunId(ctx context.Context, id string, runId string) error {
	m.Calls.SetTrackingRunId = append(m.Calls.SetTrackingRunId, struct {
		Id    string
		RunId string
	}{Id: id, RunId: runId})
	if m.Impl.SetTrackingRunId != nil {
		return m.Impl.SetTrackingRunId(ctx, id, runId)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExperimentInterface) Retry(ctx context.Context, id string) error {
	m.Calls.Retry = append(m.Calls.Retry, id)
	if m.Impl.Retry != nil {
		return m.Impl.Retry(ctx, id)
	}
	panic(errors.New("it should not be called"))
}
