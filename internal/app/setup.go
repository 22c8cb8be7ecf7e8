package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/docchat/db"
	"github.com/koopa0/docchat/internal/chat"
	"github.com/koopa0/docchat/internal/config"
	"github.com/koopa0/docchat/internal/conversation"
	"github.com/koopa0/docchat/internal/document"
	"github.com/koopa0/docchat/internal/engine"
	"github.com/koopa0/docchat/internal/index"
	"github.com/koopa0/docchat/internal/observability"
	"github.com/koopa0/docchat/internal/session"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.TracingEnabled {
		shutdown, traceErr := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.TracingEndpoint,
			ServiceName: cfg.TracingService,
			Environment: cfg.TracingEnvironment,
		}, logger)
		if traceErr != nil {
			return nil, traceErr
		}
		a.traceShutdown = shutdown
	}

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	chunks := engine.NewChunkStore(pool, logger)

	eng, err := engine.New(engine.Config{
		Genkit:    g,
		Embedder:  embedder,
		Vectors:   chunks,
		Logger:    logger,
		ModelName: cfg.FullModelName(),
		TopK:      cfg.TopK,
	})
	if err != nil {
		return nil, err
	}

	a.Documents, err = document.NewStore(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("creating document store: %w", err)
	}

	a.Conversations, err = conversation.NewStore(cfg.HistoryPath, logger)
	if err != nil {
		return nil, fmt.Errorf("creating conversation store: %w", err)
	}

	a.Manager = index.NewManager(eng, cfg.CacheIndexes, logger)

	a.Orchestrator, err = chat.New(chat.Config{
		Resolver:       a.Manager,
		Generator:      eng,
		Logger:         logger,
		IncludeHistory: cfg.IncludeHistory,
	})
	if err != nil {
		return nil, err
	}

	a.Coordinator, err = session.New(session.Config{
		Documents:     a.Documents,
		Conversations: a.Conversations,
		Responder:     a.Orchestrator,
		Logger:        logger,
		SystemPrompt:  cfg.SystemPrompt,
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool creates a PostgreSQL connection pool with sensible defaults
// for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
