// Package session reconciles the document, conversation, and index layers
// against a stateful, re-entrant request/response cycle. The surface above
// this package re-runs top to bottom on every user action; the coordinator
// keeps side effects exactly-once across those re-runs.
package session

import (
	"io"

	"github.com/google/uuid"

	"github.com/koopa0/docchat/internal/document"
)

// Upload is one file of an uploaded batch, handed in by the presentation
// boundary.
type Upload struct {
	Name string
	Data io.Reader
}

// State is the per-session record: the active conversation, the known
// document list, the selected file set, and the system prompt. It is
// initialized once per logical session and passed explicitly into every
// coordinator call; no component reads ambient session state.
type State struct {
	ConversationID string
	Documents      []document.Document
	SystemPrompt   string

	// selected is the chosen file set, keyed by path (the identity key).
	selected map[string]bool

	// ingestedBatch identifies the last upload batch that was saved.
	// Re-entrant invocations with the same batch still attached must not
	// re-save the files; a new batch resets the guard.
	ingestedBatch string
}

// Selected reports whether the document at path is part of the grounding set.
func (st *State) Selected(path string) bool {
	return st.selected[path]
}

// SelectedPaths returns the selected file paths in document-list order.
func (st *State) SelectedPaths() []string {
	paths := make([]string, 0, len(st.selected))
	for _, doc := range st.Documents {
		if st.selected[doc.Path] {
			paths = append(paths, doc.Path)
		}
	}
	return paths
}

// setSelected flips a document's membership in the grounding set, minting
// an id for directory-discovered documents on first selection.
func (st *State) setSelected(path string, on bool) {
	st.selected[path] = on
	for i := range st.Documents {
		if st.Documents[i].Path != path {
			continue
		}
		st.Documents[i].UseInRAG = on
		if on && st.Documents[i].ID == uuid.Nil {
			st.Documents[i].ID = uuid.New()
		}
		return
	}
}

// knowsPath reports whether the document list already carries path.
func (st *State) knowsPath(path string) bool {
	for _, doc := range st.Documents {
		if doc.Path == path {
			return true
		}
	}
	return false
}
