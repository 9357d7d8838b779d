package datasource

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// csvDirProvider resolves "<root>/<datasourceId>.csv" files.
// The first record is the header.
type csvDirProvider struct {
	root string
}

func FromCSVDir(root string) Provider {
	return &csvDirProvider{root: root}
}

func (p *csvDirProvider) Materialize(ctx context.Context, datasourceId string) (*domain.Table, error) {
	name := filepath.Join(p.root, filepath.Base(datasourceId)+".csv")
	buf, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: datasource '%s'", domain.ErrMissing, datasourceId)
	} else if err != nil {
		return nil, xerrors.Wrap(err)
	}
	return DecodeTable(buf)
}

// DecodeTable parses CSV bytes (header + records) into a table.
func DecodeTable(buf []byte) (*domain.Table, error) {
	records, err := csv.NewReader(bytes.NewReader(buf)).ReadAll()
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	if len(records) == 0 {
		return nil, xerrors.New("table has no header")
	}
	return &domain.Table{ColumnNames: records[0], Rows: records[1:]}, nil
}

// EncodeTable writes a table as CSV bytes (header + records).
//
// DecodeTable(EncodeTable(t)) reproduces t cell by cell.
func EncodeTable(t *domain.Table) ([]byte, error) {
	buf := bytes.Buffer{}
	w := csv.NewWriter(&buf)
	if err := w.Write(t.ColumnNames); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, xerrors.Wrap(err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return buf.Bytes(), nil
}
