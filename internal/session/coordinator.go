package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/koopa0/docchat/internal/chat"
	"github.com/koopa0/docchat/internal/conversation"
	"github.com/koopa0/docchat/internal/document"
)

// Responder produces the assistant's reply for one turn. Satisfied by
// chat.Orchestrator.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) string
}

// Config carries the coordinator's dependencies.
type Config struct {
	Documents     *document.Store
	Conversations *conversation.Store
	Responder     Responder
	Logger        *slog.Logger

	// SystemPrompt seeds new sessions; the user may edit it per session.
	SystemPrompt string
}

func (c Config) validate() error {
	if c.Documents == nil {
		return errors.New("session: document store is required")
	}
	if c.Conversations == nil {
		return errors.New("session: conversation store is required")
	}
	if c.Responder == nil {
		return errors.New("session: responder is required")
	}
	if c.Logger == nil {
		return errors.New("session: logger is required")
	}
	return nil
}

// Coordinator drives the session lifecycle. All turn processing is
// serialized: a session is a single logical user, and interleaving turns
// within one conversation would corrupt its ordering.
type Coordinator struct {
	docs      *document.Store
	convs     *conversation.Store
	responder Responder
	logger    *slog.Logger
	prompt    string

	mu sync.Mutex
}

func New(cfg Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = "You are a helpful assistant."
	}
	return &Coordinator{
		docs:      cfg.Documents,
		convs:     cfg.Conversations,
		responder: cfg.Responder,
		logger:    cfg.Logger,
		prompt:    prompt,
	}, nil
}

// Init builds a fresh session state: conversation history is rehydrated
// from disk, the document directory is scanned, and a conversation is
// created immediately so the session never lacks an active one.
func (c *Coordinator) Init() (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.convs.Load(); err != nil {
		return nil, fmt.Errorf("rehydrate conversations: %w", err)
	}

	st := &State{
		SystemPrompt: c.prompt,
		selected:     make(map[string]bool),
	}
	if err := c.reconcileListing(st); err != nil {
		return nil, err
	}

	id, err := c.convs.Create()
	if err != nil {
		return nil, fmt.Errorf("create initial conversation: %w", err)
	}
	st.ConversationID = id
	return st, nil
}

// Reconcile merges an upload batch and the current directory listing into
// the session's document list. It is safe to call on every re-entrant
// invocation: each batch is ingested at most once (redelivery of the same
// batch is a no-op, a new batch resets the guard), and the directory merge
// is a union that never drops entries or resets selection.
func (c *Coordinator) Reconcile(st *State, uploads []Upload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key := batchKey(uploads); key != "" && key != st.ingestedBatch {
		for _, up := range uploads {
			doc, err := c.docs.Ingest(up.Name, up.Data)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", up.Name, err)
			}
			if !st.knowsPath(doc.Path) {
				st.Documents = append(st.Documents, doc)
			}
			st.selected[doc.Path] = true
		}
		st.ingestedBatch = key
	}
	return c.reconcileListing(st)
}

// batchKey derives an identity for an upload batch from its file names.
// Empty batches have no identity.
func batchKey(uploads []Upload) string {
	if len(uploads) == 0 {
		return ""
	}
	names := make([]string, len(uploads))
	for i, up := range uploads {
		names[i] = up.Name
	}
	return strings.Join(names, "\x00")
}

// reconcileListing appends directory entries the session does not know yet.
// Discovered documents start unselected and carry no id until selected.
func (c *Coordinator) reconcileListing(st *State) error {
	paths, err := c.docs.ListAvailable()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, path := range paths {
		if st.knowsPath(path) {
			continue
		}
		st.Documents = append(st.Documents, document.Document{
			Name: filepath.Base(path),
			Path: path,
		})
	}
	return nil
}

// Select adds or removes a document from the session's grounding set.
func (c *Coordinator) Select(st *State, path string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st.setSelected(path, on)
}

// NewConversation creates and activates an empty conversation.
func (c *Coordinator) NewConversation(st *State) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.convs.Create()
	if err != nil {
		return "", err
	}
	st.ConversationID = id
	return id, nil
}

// SelectConversation activates an existing conversation.
func (c *Coordinator) SelectConversation(st *State, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.convs.Exists(id) {
		return fmt.Errorf("select conversation %s: %w", id, conversation.ErrConversationNotFound)
	}
	st.ConversationID = id
	return nil
}

// Send runs one full turn: the user's text is appended to the active
// conversation, the responder produces a reply grounded in the selected
// documents, and the reply is appended. Both appends persist before Send
// returns. If the active conversation vanished from the store, a new one
// is created rather than failing the turn.
func (c *Coordinator) Send(ctx context.Context, st *State, text string) (conversation.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.convs.Exists(st.ConversationID) {
		c.logger.Warn("active conversation missing, creating a new one",
			slog.String("conversation_id", st.ConversationID))
		id, err := c.convs.Create()
		if err != nil {
			return conversation.Message{}, fmt.Errorf("recreate conversation: %w", err)
		}
		st.ConversationID = id
	}

	history, err := c.convs.Messages(st.ConversationID)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("load history: %w", err)
	}

	if _, err := c.convs.Append(st.ConversationID, conversation.RoleUser, text); err != nil {
		return conversation.Message{}, fmt.Errorf("append user turn: %w", err)
	}

	reply := c.responder.Respond(ctx, chat.Request{
		Input:         text,
		SelectedPaths: c.docs.Resolve(st.SelectedPaths()),
		SystemPrompt:  st.SystemPrompt,
		History:       history,
	})

	msg, err := c.convs.Append(st.ConversationID, conversation.RoleAssistant, reply)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("append assistant turn: %w", err)
	}
	return msg, nil
}

// Transcript returns the active conversation's messages in order, or nil
// when the conversation is gone.
func (c *Coordinator) Transcript(st *State) []conversation.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, err := c.convs.Messages(st.ConversationID)
	if err != nil {
		return nil
	}
	return msgs
}

// Conversations lists all stored conversation ids.
func (c *Coordinator) Conversations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.convs.List()
}
