package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// summaryQuery is the degenerate single-document query used by Summarize.
const summaryQuery = "Summarize this document in two or three sentences."

// summarySystemPrompt keeps the summary grounded in the one scoped document.
const summarySystemPrompt = "You are a document summarizer. Produce a short, " +
	"factual synopsis of the provided document excerpts."

// Manager resolves document paths to index handles.
//
// Caching policy: when cache is enabled (config cache_indexes, the default
// production policy), a handle obtained for a path is reused for the
// lifetime of the Manager instead of rebuilding the index on every turn.
// With caching disabled every EnsureIndex call rebuilds - correct but
// costly, useful when files change under the data root mid-session.
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	svc    Service
	cache  bool
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]Handle
}

// NewManager creates a Manager over the given index service.
func NewManager(svc Service, cacheIndexes bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		svc:     svc,
		cache:   cacheIndexes,
		logger:  logger,
		handles: make(map[string]Handle),
	}
}

// EnsureIndex produces a retrieval index handle for the file at path,
// reusing a cached handle when the caching policy allows it.
func (m *Manager) EnsureIndex(ctx context.Context, path string) (Handle, error) {
	if m.cache {
		m.mu.Lock()
		h, ok := m.handles[path]
		m.mu.Unlock()
		if ok {
			m.logger.Debug("reusing cached index", "path", path, "handle", h)
			return h, nil
		}
	}

	h, err := m.svc.Index(ctx, path)
	if err != nil {
		return "", fmt.Errorf("indexing %s: %w", path, err)
	}

	if m.cache {
		m.mu.Lock()
		m.handles[path] = h
		m.mu.Unlock()
	}

	m.logger.Debug("built index", "path", path, "handle", h)
	return h, nil
}

// Invalidate drops the cached handle for a path, forcing the next
// EnsureIndex to rebuild. Used after a document is re-ingested under the
// same name.
func (m *Manager) Invalidate(path string) {
	m.mu.Lock()
	delete(m.handles, path)
	m.mu.Unlock()
}

// Summarize produces a short natural-language synopsis of one file by
// issuing a single-document query against its own index. Failures wrap
// ErrUnsupportedFormat or ErrGeneration; both are recoverable and callers
// substitute a placeholder summary.
func (m *Manager) Summarize(ctx context.Context, path string) (string, error) {
	h, err := m.EnsureIndex(ctx, path)
	if err != nil {
		return "", err
	}

	text, err := m.svc.Generate(ctx, GenerateRequest{
		Query:        summaryQuery,
		SystemPrompt: summarySystemPrompt,
		Scope:        []Handle{h},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("summarizing %s: %w", path, err)
	}
	return text, nil
}
