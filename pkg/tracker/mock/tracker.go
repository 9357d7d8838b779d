package mock

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/domain/internal/mockutil"
	"github.com/modelyard/modelyard/pkg/tracker"
)

type Tracker struct {
	Impl struct {
		StartOrResumeRun func(ctx context.Context, runId *string, name string) (tracker.Run, error)
	}

	Calls struct {
		StartOrResumeRun mockutil.CallLog[struct {
			RunId *string
			Name  string
		}]
	}
}

func NewTracker() *Tracker {
	return &Tracker{}
}

var _ tracker.Tracker = &Tracker{}

func (m *Tracker) StartOrResumeRun(ctx context.Context, runId *string, name string) (tracker.Run, error) {
	m.Calls.StartOrResumeRun = append(m.Calls.StartOrResumeRun, struct {
		RunId *string
		Name  string
	}{RunId: runId, Name: name})
	if m.Impl.StartOrResumeRun != nil {
		return m.Impl.StartOrResumeRun(ctx, runId, name)
	}
	panic(errors.New("it should not be called"))
}

type Run struct {
	Impl struct {
		Id            func() string
		LogParams     func(ctx context.Context, params map[string]string) error
		LogMetrics    func(ctx context.Context, metrics map[string]float64) error
		SetTags       func(ctx context.Context, tags map[string]string) error
		RegisterModel func(ctx context.Context, model []byte, name string) (tracker.ModelVersion, error)
		End           func(ctx context.Context, status tracker.RunStatus) error
	}

	Calls struct {
		LogParams  mockutil.CallLog[map[string]string]
		LogMetrics mockutil.CallLog[map[string]float64]
		SetTags    mockutil.CallLog[map[string]string]
		RegisterModel mockutil.CallLog[struct {
			Model []byte
			Name  string
		}]
		End mockutil.CallLog[tracker.RunStatus]
	}
}

func NewRun() *Run {
	return &Run{}
}

var _ tracker.Run = &Run{}

func (m *Run) Id() string {
	if m.Impl.Id != nil {
		return m.Impl.Id()
	}
	return "mock-run-id"
}

func (m *Run) LogParams(ctx context.Context, params map[string]string) error {
	m.Calls.LogParams = append(m.Calls.LogParams, params)
	if m.Impl.LogParams != nil {
		return m.Impl.LogParams(ctx, params)
	}
	return nil
}

func (m *Run) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	m.Calls.LogMetrics = append(m.Calls.LogMetrics, metrics)
	if m.Impl.LogMetrics != nil {
		return m.Impl.LogMetrics(ctx, metrics)
	}
	return nil
}

func (m *Run) SetTags(ctx context.Context, tags map[string]string) error {
	m.Calls.SetTags = append(m.Calls.SetTags, tags)
	if m.Impl.SetTags != nil {
		return m.Impl.SetTags(ctx, tags)
	}
	return nil
}

func (m *Run) RegisterModel(ctx context.Context, model []byte, name string) (tracker.ModelVersion, error) {
	m.Calls.RegisterModel = append(m.Calls.RegisterModel, struct {
		Model []byte
		Name  string
	}{Model: model, Name: name})
	if m.Impl.RegisterModel != nil {
		return m.Impl.RegisterModel(ctx, model, name)
	}
	return tracker.ModelVersion{Name: name, Version: "1"}, nil
}

func (m *Run) End(ctx context.Context, status tracker.RunStatus) error {
	m.Calls.End = append(m.Calls.End, status)
	if m.Impl.End != nil {
		return m.Impl.End(ctx, status)
	}
	return nil
}
