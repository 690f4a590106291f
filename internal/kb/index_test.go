package kb

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testEntry(summary string) IndexEntry {
	return IndexEntry{
		Summary:                summary,
		CreatedAt:              time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		IndexedAt:              time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		MessageCount:           8,
		SessionDurationMinutes: 25,
	}
}

func TestIndex_MergeCreatesLedger(t *testing.T) {
	t.Parallel()

	ix := NewIndex(t.TempDir())
	if err := ix.Merge("owner1", "sess1", testEntry("first")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ledger, err := ix.Stats("owner1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want 1", ledger.TotalSessions)
	}
	if got := ledger.Sessions["sess1"].Summary; got != "first" {
		t.Errorf("summary = %q, want %q", got, "first")
	}
}

func TestIndex_MergeIsIdempotentPerSession(t *testing.T) {
	t.Parallel()

	ix := NewIndex(t.TempDir())
	for i := 0; i < 3; i++ {
		if err := ix.Merge("owner1", "sess1", testEntry("updated")); err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}
	}

	ledger, err := ix.Stats("owner1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.TotalSessions != 1 {
		t.Errorf("re-merging one session inflated TotalSessions to %d", ledger.TotalSessions)
	}
}

func TestIndex_MergeAccumulatesSessions(t *testing.T) {
	t.Parallel()

	ix := NewIndex(t.TempDir())
	for _, id := range []string{"s1", "s2", "s3"} {
		if err := ix.Merge("owner1", id, testEntry(id)); err != nil {
			t.Fatalf("merge %s: %v", id, err)
		}
	}

	ledger, _ := ix.Stats("owner1")
	if ledger.TotalSessions != 3 {
		t.Errorf("TotalSessions = %d, want 3", ledger.TotalSessions)
	}
}

func TestIndex_OwnersAreIsolated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ix := NewIndex(dir)
	if err := ix.Merge("alice", "s1", testEntry("alice session")); err != nil {
		t.Fatal(err)
	}
	if err := ix.Merge("bob", "s2", testEntry("bob session")); err != nil {
		t.Fatal(err)
	}

	alice, _ := ix.Stats("alice")
	if _, leaked := alice.Sessions["s2"]; leaked {
		t.Error("bob's session leaked into alice's ledger")
	}

	// Ledgers live in separate per-owner directories.
	if _, err := os.Stat(filepath.Join(dir, "owner_alice", indexFileName)); err != nil {
		t.Errorf("alice ledger file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "owner_bob", indexFileName)); err != nil {
		t.Errorf("bob ledger file missing: %v", err)
	}
}

func TestIndex_StatsMissingOwner(t *testing.T) {
	t.Parallel()

	ix := NewIndex(t.TempDir())
	ledger, err := ix.Stats("nobody")
	if err != nil {
		t.Fatalf("missing ledger should not error: %v", err)
	}
	if ledger.OwnerID != "nobody" || ledger.TotalSessions != 0 {
		t.Errorf("expected empty ledger for unknown owner, got %+v", ledger)
	}
}

func TestIndex_Replace(t *testing.T) {
	t.Parallel()

	ix := NewIndex(t.TempDir())
	if err := ix.Merge("owner1", "stale", testEntry("stale")); err != nil {
		t.Fatal(err)
	}

	err := ix.Replace("owner1", map[string]IndexEntry{
		"fresh1": testEntry("fresh1"),
		"fresh2": testEntry("fresh2"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ledger, _ := ix.Stats("owner1")
	if ledger.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", ledger.TotalSessions)
	}
	if _, stale := ledger.Sessions["stale"]; stale {
		t.Error("replace should drop entries absent from the rebuilt set")
	}
}

func TestIndex_SurvivesReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := NewIndex(dir).Merge("owner1", "s1", testEntry("persisted")); err != nil {
		t.Fatal(err)
	}

	// A fresh Index over the same directory sees the previous write.
	ledger, err := NewIndex(dir).Stats("owner1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ledger.Sessions["s1"].Summary; got != "persisted" {
		t.Errorf("summary after reload = %q, want %q", got, "persisted")
	}
}
