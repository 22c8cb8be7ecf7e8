// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docchat/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, embedder
//   - Storage: document data root, conversation history file, PostgreSQL (vector store)
//   - Retrieval: index caching policy, history inclusion, top-k
//
// Error handling uses sentinel errors so callers can check with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidDataDir indicates the document data root is invalid.
	ErrInvalidDataDir = errors.New("invalid data directory")

	// ErrInvalidHistoryPath indicates the conversation history path is invalid.
	ErrInvalidHistoryPath = errors.New("invalid history path")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// DefaultSystemPrompt is the assistant instruction used when the user has not
// customized one. It pins the assistant to the selected documents.
const DefaultSystemPrompt = "You are a helpful assistant. Answer the user's question " +
	"using only the provided document excerpts. If the excerpts do not contain the " +
	"answer, say so instead of guessing."

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`       // "gemini" (default) or "ollama"
	ModelName     string `mapstructure:"model_name"`     // e.g. "gemini-2.5-flash", "llama3.3"
	EmbedderModel string `mapstructure:"embedder_model"` // embedding model for document indexing
	OllamaHost    string `mapstructure:"ollama_host"`    // only used when provider is "ollama"

	// Document and conversation storage
	DataDir     string `mapstructure:"data_dir"`     // document data root (uploads land here)
	HistoryPath string `mapstructure:"history_path"` // conversation history JSON file

	// Retrieval behavior
	CacheIndexes   bool   `mapstructure:"cache_indexes"`   // reuse index handles across turns (see index.Manager)
	IncludeHistory bool   `mapstructure:"include_history"` // feed prior turns into generation
	TopK           int    `mapstructure:"top_k"`           // passages retrieved per query
	SystemPrompt   string `mapstructure:"system_prompt"`   // default assistant instruction

	// Vector store (PostgreSQL + pgvector)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// HTTP surface (serve mode)
	ListenAddr string `mapstructure:"listen_addr"`

	// Trace export (optional; empty endpoint keeps the exporter at its
	// localhost default, tracing_enabled=false disables export entirely)
	TracingEnabled     bool   `mapstructure:"tracing_enabled"`
	TracingEndpoint    string `mapstructure:"tracing_endpoint"`
	TracingService     string `mapstructure:"tracing_service"`
	TracingEnvironment string `mapstructure:"tracing_environment"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docchat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", "gemini-embedding-001")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Storage defaults
	viper.SetDefault("data_dir", filepath.Join(configDir, "data"))
	viper.SetDefault("history_path", filepath.Join(configDir, "chat_history.json"))

	// Retrieval defaults. cache_indexes=true is the production policy: an index
	// handle is reused for the lifetime of the process instead of rebuilding the
	// document index on every turn.
	viper.SetDefault("cache_indexes", true)
	viper.SetDefault("include_history", true)
	viper.SetDefault("top_k", 5)
	viper.SetDefault("system_prompt", DefaultSystemPrompt)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "docchat")
	viper.SetDefault("postgres_password", "docchat_dev_password")
	viper.SetDefault("postgres_db_name", "docchat")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Serve defaults
	viper.SetDefault("listen_addr", "127.0.0.1:8080")

	// Tracing defaults
	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("tracing_endpoint", "")
	viper.SetDefault("tracing_service", "docchat")
	viper.SetDefault("tracing_environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; its presence is
// checked in Validate() when the gemini provider is selected.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "DOCCHAT_PROVIDER")
	mustBind("model_name", "DOCCHAT_MODEL_NAME")
	mustBind("embedder_model", "DOCCHAT_EMBEDDER_MODEL")
	mustBind("ollama_host", "DOCCHAT_OLLAMA_HOST")
	mustBind("data_dir", "DOCCHAT_DATA_DIR")
	mustBind("history_path", "DOCCHAT_HISTORY_PATH")
	mustBind("listen_addr", "DOCCHAT_LISTEN_ADDR")
	mustBind("postgres_password", "DOCCHAT_POSTGRES_PASSWORD")
	mustBind("tracing_enabled", "DOCCHAT_TRACING_ENABLED")
	mustBind("tracing_endpoint", "DOCCHAT_TRACING_ENDPOINT")
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == ProviderOllama {
		return ProviderOllama + "/" + c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}

// PostgresConnectionString returns the PostgreSQL DSN for pgx.
// Password is single-quoted to handle special characters (spaces, =, quotes).
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresUser,
		quoteDSNValue(c.PostgresPassword),
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// PostgresURL returns the PostgreSQL connection URL used by the migration
// runner. URL encoding handles special characters in credentials.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSLMode),
	}
	return u.String()
}

// quoteDSNValue quotes a value for PostgreSQL key=value DSN format.
// Within single quotes, backslashes and single quotes are escaped.
func quoteDSNValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
