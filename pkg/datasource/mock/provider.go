package mock

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/datasource"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/domain/internal/mockutil"
)

type Provider struct {
	Impl struct {
		Materialize func(ctx context.Context, datasourceId string) (*domain.Table, error)
	}

	Calls struct {
		Materialize mockutil.CallLog[string]
	}
}

func NewProvider() *Provider {
	return &Provider{}
}

var _ datasource.Provider = &Provider{}

func (m *Provider) Materialize(ctx context.Context, datasourceId string) (*domain.Table, error) {
	m.Calls.Materialize = append(m.Calls.Materialize, datasourceId)
	if m.Impl.Materialize != nil {
		return m.Impl.Materialize(ctx, datasourceId)
	}
	panic(errors.New("it should not be called"))
}
