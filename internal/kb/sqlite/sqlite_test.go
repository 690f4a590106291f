package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gnavi-ai/kbkeeper/internal/kb"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func chunkMeta(owner, sessionID string, idx int) kb.ChunkMetadata {
	return kb.ChunkMetadata{
		SessionID:              sessionID,
		OwnerID:                owner,
		OwnerName:              owner,
		ChunkIndex:             idx,
		Preview:                "preview",
		Summary:                owner + "'s session",
		MessageCount:           6,
		SessionDurationMinutes: 15,
		CreatedAt:              time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		IndexedAt:              time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	}
}

func addSession(t *testing.T, s *Store, owner, sessionID string, texts []string) {
	t.Helper()

	metas := make([]kb.ChunkMetadata, len(texts))
	ids := make([]string, len(texts))
	for i := range texts {
		metas[i] = chunkMeta(owner, sessionID, i)
		ids[i] = sessionID + "_chunk_" + string(rune('0'+i))
	}
	if err := s.Add(context.Background(), owner, texts, metas, ids); err != nil {
		t.Fatalf("add session %s: %v", sessionID, err)
	}
}

func TestStore_AddAndSearch(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	addSession(t, s, "alice", "s1", []string{
		"User: how do I tune postgres indexes",
		"Assistant: start with the query planner output",
	})

	results, err := s.Search(context.Background(), "alice", "postgres indexes", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected a match")
	}
	if results[0].Metadata.SessionID != "s1" {
		t.Errorf("metadata = %+v", results[0].Metadata)
	}
}

func TestStore_SearchIsOwnerScoped(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	addSession(t, s, "alice", "sa", []string{"talking about kubernetes clusters"})
	addSession(t, s, "bob", "sb", []string{"also talking about kubernetes clusters"})

	results, err := s.Search(context.Background(), "alice", "kubernetes", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.Metadata.OwnerID != "alice" {
			t.Errorf("alice's search returned %s's chunk", r.Metadata.OwnerID)
		}
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want only alice's chunk", len(results))
	}
}

func TestStore_SearchEmptyQuery(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	results, err := s.Search(context.Background(), "alice", "   ", 5)
	if err != nil || results != nil {
		t.Errorf("blank query should be a no-op, got %v, %v", results, err)
	}

	results, err = s.Search(context.Background(), "alice", "anything", 0)
	if err != nil || results != nil {
		t.Errorf("k=0 should be a no-op, got %v, %v", results, err)
	}
}

func TestStore_SearchSurvivesPunctuation(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	addSession(t, s, "alice", "s1", []string{"discussing c++ templates and \"generics\""})

	// Raw FTS syntax characters in the query must not break the search.
	if _, err := s.Search(context.Background(), "alice", `"generics" (templates*`, 5); err != nil {
		t.Errorf("punctuated query failed: %v", err)
	}
}

func TestStore_AddIsAppendOnly(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	meta := chunkMeta("alice", "s1", 0)
	if err := s.Add(ctx, "alice", []string{"original text"}, []kb.ChunkMetadata{meta}, []string{"s1_chunk_0"}); err != nil {
		t.Fatal(err)
	}

	// Re-adding the same id must neither duplicate nor overwrite.
	if err := s.Add(ctx, "alice", []string{"replacement text"}, []kb.ChunkMetadata{meta}, []string{"s1_chunk_0"}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "alice", "original", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Content != "original text" {
		t.Errorf("results = %+v, want the original chunk intact", results)
	}

	if results, _ := s.Search(ctx, "alice", "replacement", 5); len(results) != 0 {
		t.Error("replay must not overwrite an existing chunk")
	}
}

func TestStore_AddLengthMismatch(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	err := s.Add(context.Background(), "alice", []string{"a", "b"}, []kb.ChunkMetadata{chunkMeta("alice", "s1", 0)}, []string{"id1"})
	if err == nil {
		t.Fatal("mismatched slice lengths should be rejected")
	}
}

func TestStore_OwnersAndSessions(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	addSession(t, s, "alice", "s1", []string{"first chunk", "second chunk"})
	addSession(t, s, "alice", "s2", []string{"another session"})
	addSession(t, s, "bob", "s3", []string{"bob's session"})

	owners, err := s.Owners(context.Background())
	if err != nil {
		t.Fatalf("owners: %v", err)
	}
	if len(owners) != 2 {
		t.Fatalf("owners = %v, want alice and bob", owners)
	}

	sessions, err := s.Sessions(context.Background(), "alice")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d session records, want 2 (one per session, chunk 0 only)", len(sessions))
	}
	for _, meta := range sessions {
		if meta.ChunkIndex != 0 {
			t.Errorf("session record has chunk index %d, want 0", meta.ChunkIndex)
		}
		if meta.OwnerID != "alice" {
			t.Errorf("session record owned by %s", meta.OwnerID)
		}
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "persist.db")
	s, err := Open(Config{Path: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	addSession(t, s, "alice", "s1", []string{"durable content"})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	results, err := reopened.Search(context.Background(), "alice", "durable", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results after reopen, want 1", len(results))
	}
}
