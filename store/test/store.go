package test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/usetaskchat/taskchat/internal/profile"
	"github.com/usetaskchat/taskchat/store"
	"github.com/usetaskchat/taskchat/store/db/sqlite"
)

// NewTestingStore returns a store backed by a throwaway SQLite database. Each
// call gets a fresh schema; cleanup happens with the test's temp dir.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "taskchat_test.db"),
	}

	driver, err := sqlite.NewDB(p)
	if err != nil {
		t.Fatalf("failed to open testing db: %v", err)
	}
	ts := store.New(driver, p)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate testing db: %v", err)
	}
	t.Cleanup(func() {
		if err := ts.Close(); err != nil {
			t.Logf("failed to close testing store: %v", err)
		}
	})
	return ts
}
