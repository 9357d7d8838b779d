package artifacts

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelyard/modelyard/pkg/domain"
)

// memStore keeps artifacts in process memory. For tests and dry runs.
type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func InMemory() Store {
	return &memStore{blobs: map[string][]byte{}}
}

func (s *memStore) key(experimentId, name string) string {
	return experimentId + "/" + name
}

func (s *memStore) Write(ctx context.Context, experimentId string, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.key(experimentId, name)
	s.blobs[path] = append([]byte{}, data...)
	return "mem://" + path, nil
}

func (s *memStore) Read(ctx context.Context, experimentId string, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.blobs[s.key(experimentId, name)]
	if !ok {
		return nil, fmt.Errorf("%w: artifact '%s' of experiment '%s'", domain.ErrMissing, name, experimentId)
	}
	return append([]byte{}, buf...), nil
}
