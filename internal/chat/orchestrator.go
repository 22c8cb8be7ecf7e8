// Package chat turns a user utterance into a grounded assistant reply by
// combining index lookups with a single generation call per turn.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/koopa0/docchat/internal/conversation"
	"github.com/koopa0/docchat/internal/index"
)

// Fixed advisory strings. Every user turn receives some assistant text, so
// failures surface as one of these instead of a fault; the transcript never
// skips an assistant turn.
const (
	// AdviceNoDocuments is returned when no documents are selected.
	// Ungrounded generation is outside this assistant's contract, so this is
	// a deliberate short-circuit, not an error.
	AdviceNoDocuments = "No documents selected. Select at least one document to ground the answer."

	// AdviceNoIndexes is returned when every selected path vanished or
	// failed to index, leaving nothing to ground on.
	AdviceNoIndexes = "Could not prepare the selected documents. Please re-select and try again."

	// AdviceGenerationFailed is substituted for the answer when the
	// generation call itself fails.
	AdviceGenerationFailed = "I ran into a problem while answering. Please try again."

	// adviceEmptyResponse covers a model that returns without any text.
	adviceEmptyResponse = "I couldn't produce an answer for that. Please try rephrasing the question."
)

// Resolver resolves a document path to its retrieval index handle.
// index.Manager satisfies this.
type Resolver interface {
	EnsureIndex(ctx context.Context, path string) (index.Handle, error)
}

// Generator performs the grounded generation call. index.Service satisfies
// this; the orchestrator only needs its Generate half.
type Generator interface {
	Generate(ctx context.Context, req index.GenerateRequest, cb index.StreamCallback) (string, error)
}

// Request carries one user turn into the orchestrator.
type Request struct {
	Input         string
	SelectedPaths []string
	SystemPrompt  string
	History       []conversation.Message
}

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Resolver  Resolver
	Generator Generator
	Logger    *slog.Logger

	// IncludeHistory feeds prior turns into the generation request. Explicit
	// config (include_history), not an undocumented default.
	IncludeHistory bool
}

func (cfg Config) validate() error {
	if cfg.Resolver == nil {
		return errors.New("resolver is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Orchestrator produces grounded replies. It is stateless; all per-turn
// inputs arrive in the Request.
type Orchestrator struct {
	resolver       Resolver
	generator      Generator
	logger         *slog.Logger
	includeHistory bool
}

// New creates an Orchestrator with required configuration.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		resolver:       cfg.Resolver,
		generator:      cfg.Generator,
		logger:         cfg.Logger,
		includeHistory: cfg.IncludeHistory,
	}, nil
}

// Respond produces the assistant reply for one user turn. It never returns
// an error: failures become short user-readable advisories.
func (o *Orchestrator) Respond(ctx context.Context, req Request) string {
	return o.RespondStream(ctx, req, nil)
}

// RespondStream is Respond with optional streaming: when cb is non-nil it
// receives output fragments as they arrive. The return value is always the
// complete, fully drained reply regardless of streaming.
func (o *Orchestrator) RespondStream(ctx context.Context, req Request, cb index.StreamCallback) string {
	if len(req.SelectedPaths) == 0 {
		return AdviceNoDocuments
	}

	// Resolve every selected path to an index handle; paths that fail to
	// index are dropped rather than failing the turn.
	handles := make([]index.Handle, 0, len(req.SelectedPaths))
	for _, path := range req.SelectedPaths {
		h, err := o.resolver.EnsureIndex(ctx, path)
		if err != nil {
			o.logger.Warn("skipping document that failed to index",
				"path", path, "error", err)
			continue
		}
		handles = append(handles, h)
	}
	if len(handles) == 0 {
		o.logger.Warn("no selected document could be indexed",
			"selected", len(req.SelectedPaths))
		return AdviceNoIndexes
	}

	var history []conversation.Message
	if o.includeHistory {
		history = req.History
	}

	// Exactly one generation call per user turn.
	text, err := o.generator.Generate(ctx, index.GenerateRequest{
		Query:        req.Input,
		SystemPrompt: req.SystemPrompt,
		History:      history,
		Scope:        handles,
	}, cb)
	if err != nil {
		o.logger.Warn("generation failed", "error", err, "documents", len(handles))
		return AdviceGenerationFailed
	}

	if strings.TrimSpace(text) == "" {
		o.logger.Warn("model returned empty response")
		return adviceEmptyResponse
	}
	return text
}
