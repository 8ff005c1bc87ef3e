package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bible-rag/internal/models"
)

var configEnv = []string{
	"CONFIG_FILE", "APP_TITLE", "APP_ICON", "HTTP_ADDR", "LLM_PROVIDER", "LLM_BASE_URL",
	"LLM_MODEL", "EMBEDDING_MODEL", "LLM_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY",
	"MAX_TOKENS", "TEMPERATURE", "CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVAL_K",
	"MIN_RELEVANCE", "EMBED_BATCH_SIZE", "EMBED_RATE_LIMIT", "INDEX_PASSAGES",
	"CHROMA_DB_PATH", "COLLECTION_NAME", "BIBLE_DATA_PATH", "BIBLE_DATA_URL",
	"EXPORT_ENCRYPTION_KEY", "ARCHIVE_DSN", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Biblica Assistant", cfg.App.Title)
	assert.Equal(t, ProviderGoogleAI, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, ProviderGoogleAI, cfg.EmbedLLM.Provider)
	assert.Equal(t, "embedding-001", cfg.EmbedLLM.Model)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.RetrievalK)
	assert.True(t, cfg.RAG.PassagesEnabled())
	assert.Equal(t, "data/KJV.json", cfg.Store.CorpusPath)
	assert.Equal(t, models.SystemPrompt, cfg.RAG.SystemPrompt)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  title: Psalter
llm:
  provider: openai
  model: gpt-4o-mini
  key: file-key
rag:
  chunk_size: 400
  chunk_overlap: 50
  passages: false
store:
  path: /tmp/index
`), 0o644))

	t.Setenv("CHUNK_SIZE", "600")
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Psalter", cfg.App.Title)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "env-key", cfg.LLM.Key)
	assert.Equal(t, ProviderOpenAI, cfg.EmbedLLM.Provider)
	assert.Equal(t, "env-key", cfg.EmbedLLM.Key)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedLLM.Model)
	assert.Equal(t, 600, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.False(t, cfg.RAG.PassagesEnabled())
	assert.Equal(t, "/tmp/index", cfg.Store.Path)
}

func TestLoadConfig_BadNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_TOKENS", "lots")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "MAX_TOKENS")
}

func TestLoadConfig_OverlapClamped(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "150")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.RAG.ChunkOverlap)
}

func resolved() *Config {
	cfg := Default()
	applyDefaults(cfg)
	return cfg
}

func TestValidate_MissingKey(t *testing.T) {
	cfg := resolved()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestValidate(t *testing.T) {
	cfg := resolved()
	cfg.LLM.Key = "k"
	cfg.EmbedLLM.Key = "k"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Temperature = 3
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLM.Provider = ProviderOllama
	applyDefaults(cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)

	cfg.Store.EncryptionKey = "short"
	assert.Error(t, cfg.Validate())

	cfg = resolved()
	cfg.LLM.Provider = "bard"
	assert.ErrorContains(t, cfg.Validate(), "unsupported provider")
}
