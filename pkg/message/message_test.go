package message

import (
	"strings"
	"testing"
	"time"
)

func TestRenderTranscript_RoleTags(t *testing.T) {
	t.Parallel()

	now := time.Now()
	msgs := []Message{
		{Role: RoleSystem, Content: "session opened", Timestamp: now},
		{Role: RoleUser, Content: "hello", Timestamp: now},
		{Role: RoleAssistant, Content: "hi there", Timestamp: now},
	}

	got := RenderTranscript(msgs)
	want := "System: session opened\nUser: hello\nAssistant: hi there"
	if got != want {
		t.Fatalf("transcript mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRenderTranscript_Empty(t *testing.T) {
	t.Parallel()

	if got := RenderTranscript(nil); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestRenderTranscript_UnknownRole(t *testing.T) {
	t.Parallel()

	got := RenderTranscript([]Message{{Role: "tool", Content: "ok"}})
	if !strings.HasPrefix(got, "tool: ") {
		t.Fatalf("unknown roles should fall back to the raw tag, got %q", got)
	}
}

func TestCountByRole(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
		{Role: RoleSystem, Content: "d"},
	}

	users, assistants := CountByRole(msgs)
	if users != 2 || assistants != 1 {
		t.Fatalf("got users=%d assistants=%d, want 2/1", users, assistants)
	}
}
