package artifacts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/modelyard/modelyard/pkg/artifacts"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

func TestStores(t *testing.T) {
	ctx := context.Background()

	stores := map[string]func(t *testing.T) artifacts.Store{
		"filesystem": func(t *testing.T) artifacts.Store {
			return artifacts.OnFilesystem(t.TempDir())
		},
		"in-memory": func(t *testing.T) artifacts.Store {
			return artifacts.InMemory()
		},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("write then read round-trips", func(t *testing.T) {
				store := build(t)

				path := try.To(store.Write(ctx, "exp-1", artifacts.Model, []byte("blob"))).OrFatal(t)
				if path == "" {
					t.Error("empty path")
				}

				got := try.To(store.Read(ctx, "exp-1", artifacts.Model)).OrFatal(t)
				if string(got) != "blob" {
					t.Errorf("got %q, want blob", got)
				}
			})

			t.Run("reading an unwritten artifact is ErrMissing", func(t *testing.T) {
				store := build(t)
				if _, err := store.Read(ctx, "exp-1", artifacts.Metrics); !errors.Is(err, domain.ErrMissing) {
					t.Errorf("got %v, want ErrMissing", err)
				}
			})

			t.Run("experiments do not share artifacts", func(t *testing.T) {
				store := build(t)
				try.To(store.Write(ctx, "exp-1", artifacts.Model, []byte("one"))).OrFatal(t)
				try.To(store.Write(ctx, "exp-2", artifacts.Model, []byte("two"))).OrFatal(t)

				got := try.To(store.Read(ctx, "exp-1", artifacts.Model)).OrFatal(t)
				if string(got) != "one" {
					t.Errorf("got %q, want one", got)
				}
			})

			t.Run("a rewrite overwrites", func(t *testing.T) {
				store := build(t)
				try.To(store.Write(ctx, "exp-1", artifacts.Model, []byte("old"))).OrFatal(t)
				try.To(store.Write(ctx, "exp-1", artifacts.Model, []byte("new"))).OrFatal(t)

				got := try.To(store.Read(ctx, "exp-1", artifacts.Model)).OrFatal(t)
				if string(got) != "new" {
					t.Errorf("got %q, want new", got)
				}
			})
		})
	}
}
