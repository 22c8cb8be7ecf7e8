// Package engine implements document indexing and grounded answer
// generation on top of Genkit and PostgreSQL + pgvector. It embeds file
// content at index time, retrieves the closest chunks at question time,
// and conditions the model on them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/koopa0/docchat/internal/conversation"
	"github.com/koopa0/docchat/internal/index"
)

// supportedExtensions are the file types whose content can be read as text
// and embedded. Anything else is rejected at index time.
var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".xml":  true,
	".html": true,
	".log":  true,
	".rst":  true,
}

// Vectors is the chunk persistence the engine needs. Satisfied by
// *ChunkStore.
type Vectors interface {
	Replace(ctx context.Context, handle string, chunks []string, embeddings [][]float32) error
	Search(ctx context.Context, handles []string, embedding []float32, limit int) ([]ScoredChunk, error)
}

// Config carries the engine's dependencies.
type Config struct {
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Vectors  Vectors
	Logger   *slog.Logger

	// ModelName is the fully qualified generation model, e.g.
	// "googleai/gemini-2.5-flash" or "ollama/llama3.2".
	ModelName string

	// TopK is how many chunks retrieval hands to the model per question.
	TopK int
}

func (c Config) validate() error {
	if c.Genkit == nil {
		return errors.New("engine: genkit instance is required")
	}
	if c.Embedder == nil {
		return errors.New("engine: embedder is required")
	}
	if c.Vectors == nil {
		return errors.New("engine: vector store is required")
	}
	if c.Logger == nil {
		return errors.New("engine: logger is required")
	}
	if c.ModelName == "" {
		return errors.New("engine: model name is required")
	}
	if c.TopK <= 0 {
		return errors.New("engine: top_k must be positive")
	}
	return nil
}

// Engine implements index.Service.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	g        *genkit.Genkit
	embedder ai.Embedder
	vectors  Vectors
	logger   *slog.Logger
	model    string
	topK     int
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{
		g:        cfg.Genkit,
		embedder: cfg.Embedder,
		vectors:  cfg.Vectors,
		logger:   cfg.Logger,
		model:    cfg.ModelName,
		topK:     cfg.TopK,
	}, nil
}

// Index reads the file at path, chunks and embeds its content, and stores
// the chunks under the path's stable handle. Re-indexing the same path
// replaces the previous chunks.
func (e *Engine) Index(ctx context.Context, path string) (index.Handle, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !supportedExtensions[ext] {
		return "", fmt.Errorf("index %s: %w", filepath.Base(absPath), index.ErrUnsupportedFormat)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", absPath, err)
	}

	chunks := splitChunks(string(content), maxChunkBytes)
	if len(chunks) == 0 {
		return "", fmt.Errorf("index %s: file has no extractable text: %w", filepath.Base(absPath), index.ErrUnsupportedFormat)
	}

	embeddings, err := e.embed(ctx, chunks)
	if err != nil {
		return "", fmt.Errorf("embed %s: %w", absPath, err)
	}

	handle := index.HandleForPath(absPath)
	if err := e.vectors.Replace(ctx, string(handle), chunks, embeddings); err != nil {
		return "", fmt.Errorf("store chunks for %s: %w", absPath, err)
	}

	e.logger.Debug("indexed document",
		slog.String("path", absPath),
		slog.String("handle", string(handle)),
		slog.Int("chunks", len(chunks)))
	return handle, nil
}

// Generate answers the request's query grounded in chunks retrieved from
// the scoped handles. When cb is non-nil, output fragments are forwarded
// to it as they arrive; the full text is returned either way.
func (e *Engine) Generate(ctx context.Context, req index.GenerateRequest, cb index.StreamCallback) (string, error) {
	docs, err := e.retrieve(ctx, req.Scope, req.Query)
	if err != nil {
		return "", fmt.Errorf("%w: %v", index.ErrGeneration, err)
	}

	msgs := historyMessages(req.History)
	msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(req.Query)))

	opts := []ai.GenerateOption{
		ai.WithModelName(e.model),
		ai.WithSystem(req.SystemPrompt),
		ai.WithMessages(msgs...),
		ai.WithDocs(docs...),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return cb(ctx, chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, e.g, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", index.ErrGeneration, err)
	}
	return resp.Text(), nil
}

// retrieve embeds the query and returns the closest chunks across the
// scoped handles as grounding documents.
func (e *Engine) retrieve(ctx context.Context, scope []index.Handle, query string) ([]*ai.Document, error) {
	embeddings, err := e.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	handles := make([]string, len(scope))
	for i, h := range scope {
		handles[i] = string(h)
	}

	chunks, err := e.vectors.Search(ctx, handles, embeddings[0], e.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}

	docs := make([]*ai.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, ai.DocumentFromText(c.Content, map[string]any{
			"handle":  c.Handle,
			"ordinal": c.Ordinal,
		}))
	}
	return docs, nil
}

// embed generates one embedding per text via the configured embedder.
func (e *Engine) embed(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]*ai.Document, len(texts))
	for i, t := range texts {
		input[i] = &ai.Document{Content: []*ai.Part{ai.NewTextPart(t)}}
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, errors.New("embedder returned an empty embedding")
		}
		out[i] = emb.Embedding
	}
	return out, nil
}

// historyMessages converts stored conversation turns into model messages.
func historyMessages(history []conversation.Message) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case conversation.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return msgs
}
