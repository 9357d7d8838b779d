// Package datasource materializes named datasets into in-memory tables.
package datasource

import (
	"context"

	"github.com/modelyard/modelyard/pkg/domain"
)

type Provider interface {
	// Materialize resolves a datasource id into a table with named columns
	// in stable order.
	Materialize(ctx context.Context, datasourceId string) (*domain.Table, error)
}
