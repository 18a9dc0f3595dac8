package records_test

import (
	"context"
	"errors"
	"testing"

	"scanmatch/internal/logging"
	"scanmatch/internal/matcher"
	"scanmatch/internal/records"
	"scanmatch/internal/testsupport"
)

func templateFor(t *testing.T, seed byte) *matcher.Template {
	t.Helper()
	svc := matcher.NewService(matcher.NewDigestEngine(), logging.NewNop())
	tpl, err := svc.ExtractTemplate(context.Background(), testsupport.RawImage(t, 16, 16, seed))
	if err != nil {
		t.Fatalf("ExtractTemplate: %v", err)
	}
	return tpl
}

func TestEnrollAndFind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	tpl := templateFor(t, 1)
	entry, err := store.Enroll(ctx, "  alice ", "left index", tpl)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if entry.Name != "alice" {
		t.Fatalf("expected trimmed name, got %q", entry.Name)
	}
	if entry.CreatedAt.IsZero() || !entry.CreatedAt.Equal(entry.ModifiedAt) {
		t.Fatalf("unexpected timestamps created=%v modified=%v", entry.CreatedAt, entry.ModifiedAt)
	}

	found, err := store.Find(ctx, "alice")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found == nil || found.Description != "left index" {
		t.Fatalf("unexpected entry %+v", found)
	}
	if string(found.Template.Minutiae) != string(tpl.Minutiae) {
		t.Fatal("template did not round trip through the store")
	}

	missing, err := store.Find(ctx, "bob")
	if err != nil || missing != nil {
		t.Fatalf("expected no entry for bob, got %+v err=%v", missing, err)
	}
}

func TestEnrollRejectsDuplicateName(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustEnroll(t, store, "alice", templateFor(t, 1))

	_, err := store.Enroll(ctx, "alice", "", templateFor(t, 2))
	if !errors.Is(err, records.ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}
}

func TestNamesAreNFCNormalized(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustEnroll(t, store, "Ren\u00e9", templateFor(t, 1))

	found, err := store.Find(ctx, "Rene\u0301")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found == nil {
		t.Fatal("expected decomposed name to find the precomposed entry")
	}
}

func TestInvalidNames(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	long := make([]rune, 129)
	for i := range long {
		long[i] = 'a'
	}
	for _, name := range []string{"", "   ", string(long)} {
		if _, err := store.Enroll(ctx, name, "", templateFor(t, 1)); !errors.Is(err, records.ErrInvalidName) {
			t.Fatalf("Enroll(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestUpdateKeepsCreationTime(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	original := testsupport.MustEnroll(t, store, "alice", templateFor(t, 1))

	replacement := templateFor(t, 9)
	updated, err := store.Update(ctx, "alice", "re-enrolled", replacement)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", original.CreatedAt, updated.CreatedAt)
	}
	if updated.ModifiedAt.Before(original.ModifiedAt) {
		t.Fatalf("modified_at went backwards: %v -> %v", original.ModifiedAt, updated.ModifiedAt)
	}
	if string(updated.Template.Minutiae) != string(replacement.Minutiae) {
		t.Fatal("expected replacement template")
	}
	if updated.Description != "re-enrolled" {
		t.Fatalf("unexpected description %q", updated.Description)
	}

	if _, err := store.Update(ctx, "nobody", "", replacement); !errors.Is(err, records.ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}
}

func TestRemoveListCountClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustEnroll(t, store, "carol", templateFor(t, 3))
	testsupport.MustEnroll(t, store, "alice", templateFor(t, 1))
	testsupport.MustEnroll(t, store, "bob", templateFor(t, 2))

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if len(names) != 3 || names[0] != "alice" || names[1] != "bob" || names[2] != "carol" {
		t.Fatalf("expected name order, got %v", names)
	}

	if err := store.Remove(ctx, "bob"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, "bob"); !errors.Is(err, records.ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled on second remove, got %v", err)
	}
	if n, err := store.Count(ctx); err != nil || n != 2 {
		t.Fatalf("Count = %d, %v; want 2", n, err)
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("expected empty store, got %d", n)
	}
	if size, err := store.Size(ctx); err != nil || size <= 0 {
		t.Fatalf("Size = %d, %v", size, err)
	}
}

func TestMatchFindsEnrolledUser(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	svc := matcher.NewService(matcher.NewDigestEngine(), logging.NewNop())
	testsupport.MustEnroll(t, store, "alice", templateFor(t, 1))
	testsupport.MustEnroll(t, store, "bob", templateFor(t, 2))

	best, err := store.Match(ctx, templateFor(t, 2), svc)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if best == nil || best.Name != "bob" {
		t.Fatalf("expected bob, got %+v", best)
	}
	if best.Score <= 0 {
		t.Fatalf("expected positive score, got %d", best.Score)
	}

	none, err := store.Match(ctx, templateFor(t, 7), svc)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no match, got %q", none.Name)
	}
}

type fixedScores map[string]int

func (f fixedScores) MatchTemplates(_ context.Context, _, b *matcher.Template) (int, error) {
	return f[string(b.Minutiae)], nil
}

func TestMatchPrefersHighestScoreThenName(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	a, b, c := templateFor(t, 1), templateFor(t, 2), templateFor(t, 3)
	testsupport.MustEnroll(t, store, "alice", a)
	testsupport.MustEnroll(t, store, "bob", b)
	testsupport.MustEnroll(t, store, "carol", c)

	scores := fixedScores{string(a.Minutiae): 40, string(b.Minutiae): 80, string(c.Minutiae): 80}
	best, err := store.Match(ctx, a, scores)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if best == nil || best.Name != "bob" || best.Score != 80 {
		t.Fatalf("expected bob at 80, got %+v", best)
	}
}

func TestMatchRejectsNilArguments(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.Match(context.Background(), nil, fixedScores{}); !errors.Is(err, matcher.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := store.Match(context.Background(), templateFor(t, 1), nil); !errors.Is(err, matcher.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.MustEnroll(t, store, "alice", templateFor(t, 1))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if n, err := reopened.Count(context.Background()); err != nil || n != 1 {
		t.Fatalf("Count after reopen = %d, %v", n, err)
	}
}
