// Package message defines the conversation data contract shared by the
// session registry, the summarizer, and the knowledge-base builder.
package message

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

// Supported roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation message as recorded by the chat engine.
// The core never mutates messages; it reads them once at session close.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CountByRole returns the number of user and assistant messages.
func CountByRole(msgs []Message) (users, assistants int) {
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			users++
		case RoleAssistant:
			assistants++
		case RoleSystem:
		}
	}
	return users, assistants
}

// RenderTranscript renders messages as role-tagged plain text, one line per
// message. This is the canonical text form consumed by the summarizer and
// the chunker, so both see identical input for the same session.
func RenderTranscript(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(roleTag(m.Role))
		b.WriteString(m.Content)
	}
	return b.String()
}

func roleTag(r Role) string {
	switch r {
	case RoleUser:
		return "User: "
	case RoleAssistant:
		return "Assistant: "
	case RoleSystem:
		return "System: "
	default:
		return string(r) + ": "
	}
}
