package config

import (
	"errors"
	"testing"
)

// validConfig returns a Config that passes Validate with the ollama provider,
// which needs no API key in the environment.
func validConfig() *Config {
	return &Config{
		Provider:       ProviderOllama,
		ModelName:      "llama3.3",
		EmbedderModel:  "nomic-embed-text",
		OllamaHost:     "http://localhost:11434",
		DataDir:        "/tmp/docchat/data",
		HistoryPath:    "/tmp/docchat/chat_history.json",
		TopK:           5,
		PostgresHost:   "localhost",
		PostgresPort:   5432,
		PostgresDBName: "docchat",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "ollama without host",
			mutate:  func(c *Config) { c.OllamaHost = "" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "top-k too small",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "top-k too large",
			mutate:  func(c *Config) { c.TopK = 100 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrInvalidDataDir,
		},
		{
			name:    "empty history path",
			mutate:  func(c *Config) { c.HistoryPath = "" },
			wantErr: ErrInvalidHistoryPath,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty postgres db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Fatalf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{"gemini default", ProviderGemini, "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"ollama", ProviderOllama, "llama3.3", "ollama/llama3.3"},
		{"already qualified", ProviderGemini, "googleai/gemini-2.5-pro", "googleai/gemini-2.5-pro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Provider: tt.provider, ModelName: tt.model}
			if got := c.FullModelName(); got != tt.want {
				t.Errorf("FullModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	c := validConfig()
	c.PostgresUser = "docchat"
	c.PostgresPassword = "p4ss word's"
	c.PostgresSSLMode = "disable"

	got := c.PostgresConnectionString()
	want := `host=localhost port=5432 user=docchat password='p4ss word\'s' dbname=docchat sslmode=disable`
	if got != want {
		t.Errorf("PostgresConnectionString() = %q, want %q", got, want)
	}
}
