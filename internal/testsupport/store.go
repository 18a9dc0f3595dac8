package testsupport

import (
	"context"
	"testing"

	"scanmatch/internal/config"
	"scanmatch/internal/matcher"
	"scanmatch/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnroll stores a template for name and fails the test on error.
func MustEnroll(t testing.TB, store *records.Store, name string, tpl *matcher.Template) *records.Entry {
	t.Helper()

	entry, err := store.Enroll(context.Background(), name, "", tpl)
	if err != nil {
		t.Fatalf("store.Enroll(%q): %v", name, err)
	}
	return entry
}
