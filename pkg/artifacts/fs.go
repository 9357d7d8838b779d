package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// fsStore lays artifacts out as "<root>/<experimentId>/<name>".
type fsStore struct {
	root string
}

func OnFilesystem(root string) Store {
	return &fsStore{root: root}
}

func (s *fsStore) Write(ctx context.Context, experimentId string, name string, data []byte) (string, error) {
	dir := filepath.Join(s.root, filepath.Base(experimentId))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", xerrors.Wrap(err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", xerrors.Wrap(err)
	}
	return path, nil
}

func (s *fsStore) Read(ctx context.Context, experimentId string, name string) ([]byte, error) {
	path := filepath.Join(s.root, filepath.Base(experimentId), filepath.Base(name))
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: artifact '%s' of experiment '%s'", domain.ErrMissing, name, experimentId)
	} else if err != nil {
		return nil, xerrors.Wrap(err)
	}
	return buf, nil
}
