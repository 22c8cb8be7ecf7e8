// Package conversation provides the durable, keyed collection of chat
// transcripts. Each conversation is an append-only, insertion-ordered list of
// messages; the whole mapping is persisted as a single JSON file.
package conversation

import (
	"errors"

	"github.com/google/uuid"
)

// Message roles. Ordering of messages within a conversation is insertion
// order and defines the dialogue transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrConversationNotFound indicates an append or read referenced a
// conversation id that is not present in the history mapping, e.g. a stale
// reference after a history reset. Callers recover by creating a new
// conversation; this is never fatal.
var ErrConversationNotFound = errors.New("conversation not found")

// Message is a single chat turn. Immutable once appended.
type Message struct {
	ID      uuid.UUID `json:"id"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
}

// History maps conversation ids to their ordered turn lists. It is the sole
// persisted aggregate.
type History map[string][]Message
