// Package testutil provides shared test helpers for setting up stores.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/mldataset/internal/dataset"
	"github.com/starford/mldataset/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestStore opens a store over a fresh temporary root. The store is closed
// when the test ends.
func TestStore(t *testing.T) (string, *dataset.Store) {
	t.Helper()
	root := t.TempDir()
	provider, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	s := dataset.Open(provider, dataset.WithLogger(Logger()))
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return root, s
}
