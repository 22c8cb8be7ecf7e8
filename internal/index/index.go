// Package index defines the boundary to the document index service (the
// embedding/generation engine) and the manager that resolves document paths
// to retrieval index handles.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"

	"github.com/koopa0/docchat/internal/conversation"
)

// Sentinel errors surfaced by the index service. Both are recoverable:
// callers substitute a placeholder string and continue.
var (
	// ErrUnsupportedFormat indicates the file type cannot be parsed into
	// retrievable content.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrGeneration indicates the underlying generation call failed
	// (timeout, quota, malformed response).
	ErrGeneration = errors.New("generation failed")
)

// Handle is an opaque identifier bound to exactly one source file's
// retrieval index. One document maps to one handle, never partial or merged
// indexes, so cross-document retrieval is always an explicit union of
// handles.
type Handle string

// HandleForPath derives the stable handle for a file path. The handle is a
// SHA-256 of the absolute path, so re-indexing the same file always lands on
// the same handle.
func HandleForPath(path string) Handle {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return Handle("doc_" + hex.EncodeToString(sum[:16]))
}

// StreamCallback receives partial output fragments during generation.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk string) error

// GenerateRequest carries everything the engine needs for one grounded
// generation call.
type GenerateRequest struct {
	// Query is the user's utterance for this turn.
	Query string

	// SystemPrompt is the assistant instruction.
	SystemPrompt string

	// History holds prior turns to condition on. May be empty; whether it is
	// populated is the orchestrator's include_history policy, not the
	// engine's concern.
	History []conversation.Message

	// Scope is the set of index handles retrieval is restricted to. Never
	// empty: the orchestrator short-circuits before calling the engine when
	// no documents are available.
	Scope []Handle
}

// Service is the boundary to the external embedding/indexing/completion
// engine. Implementations may stream partial outputs through the callback
// (which may be nil), but Generate always returns the fully drained string:
// streaming is an internal choice, not part of the caller-visible contract.
type Service interface {
	// Index builds (or rebuilds) the retrieval index for the file at path
	// and returns its handle. Safe to call repeatedly for the same path.
	Index(ctx context.Context, path string) (Handle, error)

	// Generate answers the request grounded in the scoped indexes.
	Generate(ctx context.Context, req GenerateRequest, cb StreamCallback) (string, error)
}
