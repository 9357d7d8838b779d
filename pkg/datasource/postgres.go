package datasource

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgproto3/v2"
	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/utils/slices"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// pgProvider treats a datasource id as a table (or view) name and
// materializes its full content. Column order follows the table definition.
type pgProvider struct {
	pool kpool.Pool
}

func FromPostgres(pool kpool.Pool) Provider {
	return &pgProvider{pool: pool}
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (p *pgProvider) Materialize(ctx context.Context, datasourceId string) (*domain.Table, error) {
	if !identifierPattern.MatchString(datasourceId) {
		return nil, fmt.Errorf(
			"%w: '%s' is not a table name", domain.ErrValidation, datasourceId,
		)
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`select * from "%s"`, datasourceId))
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	names := slices.Map(
		rows.FieldDescriptions(),
		func(fd pgproto3.FieldDescription) string { return string(fd.Name) },
	)

	table := &domain.Table{ColumnNames: names}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		table.Rows = append(table.Rows, slices.Map(values, formatCell))
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return table, nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
