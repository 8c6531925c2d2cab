package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/store"
)

// DiscardLogger returns a logger that writes nothing.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewStore opens a SQLite store under t.TempDir() and closes it on cleanup.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "referral.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NoEnv is an environment lookup that never finds anything, so tests are
// not affected by the host environment.
func NoEnv(string) (string, bool) { return "", false }

// NewResolver creates a config resolver over s that ignores the host
// environment.
func NewResolver(s *store.Store) *config.Resolver {
	return config.NewResolver(s, config.WithEnv(NoEnv), config.WithLogger(DiscardLogger()))
}
