// Package types defines the message model shared by every Jai Dee component.
package types

import "strings"

// Role represents the message role.
type Role string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"

	// RoleSystem represents a system message.
	RoleSystem Role = "system"

	// RoleSystemSummary is the synthetic role carrying a compaction summary.
	// It is stored in sessions but must never be sent to the model directly;
	// ForDispatch folds it into the leading system message.
	RoleSystemSummary Role = "system_summary"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleSystemSummary:
		return true
	}
	return false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Message represents a single conversation message.
// Ordering within a session is chronological.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// NewSummaryMessage creates a synthetic summary message.
func NewSummaryMessage(text string) Message {
	return Message{Role: RoleSystemSummary, Content: text}
}

// IsSummary reports whether the message carries a compaction summary.
func (m Message) IsSummary() bool {
	return m.Role == RoleSystemSummary
}

// ForDispatch prepares a message list for the model API.
// All system_summary entries are removed and their content is merged into
// the leading system message (one is prepended if the list has none), so
// the synthetic role never reaches the API but its information is kept.
// The input slice is not modified.
func ForDispatch(messages []Message) []Message {
	var summaries []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.IsSummary() {
			if m.Content != "" {
				summaries = append(summaries, m.Content)
			}
			continue
		}
		rest = append(rest, m)
	}

	if len(summaries) == 0 {
		return rest
	}

	merged := strings.Join(summaries, "\n")
	if len(rest) > 0 && rest[0].Role == RoleSystem {
		head := rest[0]
		head.Content = head.Content + "\n\n" + merged
		out := make([]Message, len(rest))
		copy(out, rest)
		out[0] = head
		return out
	}

	out := make([]Message, 0, len(rest)+1)
	out = append(out, NewSystemMessage(merged))
	out = append(out, rest...)
	return out
}

// CountPairs returns the number of user/assistant pairs in messages,
// counting a trailing unanswered user message as its own pair.
func CountPairs(messages []Message) int {
	pairs := 0
	for i := 0; i < len(messages); i++ {
		if messages[i].Role != RoleUser {
			continue
		}
		pairs++
		if i+1 < len(messages) && messages[i+1].Role == RoleAssistant {
			i++
		}
	}
	return pairs
}
