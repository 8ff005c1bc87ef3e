package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bible-rag/internal/models"
)

const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"

	DefaultConfigFile = "./configs/config.yaml"
	DefaultCorpusURL  = "https://github.com/scrollmapper/bible_databases/raw/refs/heads/master/formats/json/KJV.json"
)

type Config struct {
	App      AppConfig     `yaml:"app"`
	LLM      LLMConfig     `yaml:"llm"`
	EmbedLLM LLMConfig     `yaml:"embed_llm"`
	RAG      RAGConfig     `yaml:"rag"`
	Store    StoreConfig   `yaml:"store"`
	Archive  ArchiveConfig `yaml:"archive"`
	Log      LogConfig     `yaml:"log"`
}

type AppConfig struct {
	Title string `yaml:"title"`
	Icon  string `yaml:"icon"`
	Addr  string `yaml:"addr"`
}

// LLMConfig describes one provider endpoint; used for both generation and embeddings.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type RAGConfig struct {
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	Passages       *bool   `yaml:"passages"`
	RetrievalK     int     `yaml:"retrieval_k"`
	MinRelevance   float64 `yaml:"min_relevance"`
	SystemPrompt   string  `yaml:"system_prompt"`
	EmbedBatchSize int     `yaml:"embed_batch_size"`
	EmbedRateLimit float64 `yaml:"embed_rate_limit"`
}

// PassagesEnabled reports whether passage chunks are built; defaults to true.
func (r RAGConfig) PassagesEnabled() bool {
	return r.Passages == nil || *r.Passages
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
	CorpusPath    string `yaml:"corpus_path"`
	CorpusURL     string `yaml:"corpus_url"`
	Translation   string `yaml:"translation"`
}

type ArchiveConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty *bool  `yaml:"pretty"`
}

var defaultModels = map[string]struct{ chat, embed string }{
	ProviderGoogleAI: {"gemini-2.0-flash", "embedding-001"},
	ProviderOpenAI:   {"gpt-4o-mini", "text-embedding-3-small"},
	ProviderOllama:   {"llama3.2", "nomic-embed-text"},
}

// Default returns the base configuration that the YAML file and env vars are layered onto.
// Provider-dependent fields (models, embedding endpoint) are filled in by LoadConfig.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Title: "Biblica Assistant",
			Icon:  "✝️",
			Addr:  ":8501",
		},
		LLM: LLMConfig{
			Provider:    ProviderGoogleAI,
			MaxTokens:   1000,
			Temperature: 0.7,
		},
		RAG: RAGConfig{
			ChunkSize:      1000,
			ChunkOverlap:   200,
			RetrievalK:     5,
			MinRelevance:   0.5,
			SystemPrompt:   models.SystemPrompt,
			EmbedBatchSize: 100,
			EmbedRateLimit: 5,
		},
		Store: StoreConfig{
			Path:        "data/chroma_db",
			Collection:  "bible_verses",
			CorpusPath:  "data/KJV.json",
			CorpusURL:   DefaultCorpusURL,
			Translation: models.DefaultTranslation,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads .env, the optional YAML file at path and then environment overrides.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = getEnv("CONFIG_FILE", DefaultConfigFile)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.App.Title = getEnv("APP_TITLE", cfg.App.Title)
	cfg.App.Icon = getEnv("APP_ICON", cfg.App.Icon)
	cfg.App.Addr = getEnv("HTTP_ADDR", cfg.App.Addr)

	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		cfg.LLM.Provider = p
		cfg.EmbedLLM.Provider = p
	}
	if u := os.Getenv("LLM_BASE_URL"); u != "" {
		cfg.LLM.BaseURL = u
		cfg.EmbedLLM.BaseURL = u
	}
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.EmbedLLM.Model = getEnv("EMBEDDING_MODEL", cfg.EmbedLLM.Model)

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = cfg.LLM.Provider
	}
	if key := apiKeyFromEnv(cfg.LLM.Provider); key != "" {
		cfg.LLM.Key = key
	}
	if key := apiKeyFromEnv(cfg.EmbedLLM.Provider); key != "" {
		cfg.EmbedLLM.Key = key
	}

	var err error
	if cfg.LLM.MaxTokens, err = getEnvInt("MAX_TOKENS", cfg.LLM.MaxTokens); err != nil {
		return err
	}
	if cfg.LLM.Temperature, err = getEnvFloat("TEMPERATURE", cfg.LLM.Temperature); err != nil {
		return err
	}
	if cfg.RAG.ChunkSize, err = getEnvInt("CHUNK_SIZE", cfg.RAG.ChunkSize); err != nil {
		return err
	}
	if cfg.RAG.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", cfg.RAG.ChunkOverlap); err != nil {
		return err
	}
	if cfg.RAG.RetrievalK, err = getEnvInt("RETRIEVAL_K", cfg.RAG.RetrievalK); err != nil {
		return err
	}
	if cfg.RAG.MinRelevance, err = getEnvFloat("MIN_RELEVANCE", cfg.RAG.MinRelevance); err != nil {
		return err
	}
	if cfg.RAG.EmbedBatchSize, err = getEnvInt("EMBED_BATCH_SIZE", cfg.RAG.EmbedBatchSize); err != nil {
		return err
	}
	if cfg.RAG.EmbedRateLimit, err = getEnvFloat("EMBED_RATE_LIMIT", cfg.RAG.EmbedRateLimit); err != nil {
		return err
	}
	if v := os.Getenv("INDEX_PASSAGES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("INDEX_PASSAGES: %w", err)
		}
		cfg.RAG.Passages = &b
	}

	cfg.Store.Path = getEnv("CHROMA_DB_PATH", cfg.Store.Path)
	cfg.Store.Collection = getEnv("COLLECTION_NAME", cfg.Store.Collection)
	cfg.Store.CorpusPath = getEnv("BIBLE_DATA_PATH", cfg.Store.CorpusPath)
	cfg.Store.CorpusURL = getEnv("BIBLE_DATA_URL", cfg.Store.CorpusURL)
	cfg.Store.EncryptionKey = getEnv("EXPORT_ENCRYPTION_KEY", cfg.Store.EncryptionKey)

	cfg.Archive.DSN = getEnv("ARCHIVE_DSN", cfg.Archive.DSN)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	return nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize / 5
	}
	if cfg.RAG.RetrievalK <= 0 {
		cfg.RAG.RetrievalK = def.RAG.RetrievalK
	}
	if cfg.RAG.EmbedBatchSize <= 0 {
		cfg.RAG.EmbedBatchSize = def.RAG.EmbedBatchSize
	}
	if strings.TrimSpace(cfg.RAG.SystemPrompt) == "" {
		cfg.RAG.SystemPrompt = def.RAG.SystemPrompt
	}
	if cfg.Store.Translation == "" {
		cfg.Store.Translation = def.Store.Translation
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = def.Store.Collection
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = cfg.LLM.Provider
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModels[cfg.LLM.Provider].chat
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = defaultModels[cfg.EmbedLLM.Provider].embed
	}
	if cfg.EmbedLLM.Key == "" && cfg.EmbedLLM.Provider == cfg.LLM.Provider {
		cfg.EmbedLLM.Key = cfg.LLM.Key
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == cfg.LLM.Provider {
		cfg.EmbedLLM.BaseURL = cfg.LLM.BaseURL
	}
}

// Validate fails fast on configuration that cannot work, most importantly missing credentials.
func (c *Config) Validate() error {
	for _, l := range []struct {
		name string
		cfg  LLMConfig
	}{{"llm", c.LLM}, {"embed_llm", c.EmbedLLM}} {
		switch l.cfg.Provider {
		case ProviderGoogleAI, ProviderOpenAI:
			if l.cfg.Key == "" {
				return fmt.Errorf("%s (%s): %w; set %s", l.name, l.cfg.Provider, models.ErrMissingAPIKey, apiKeyEnvName(l.cfg.Provider))
			}
		case ProviderOllama:
		default:
			return fmt.Errorf("%s: unsupported provider %q", l.name, l.cfg.Provider)
		}
		if l.cfg.Model == "" {
			return fmt.Errorf("%s: model is required", l.name)
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.RAG.MinRelevance < 0 || c.RAG.MinRelevance > 1 {
		return fmt.Errorf("min relevance %.2f out of range [0, 1]", c.RAG.MinRelevance)
	}
	if k := c.Store.EncryptionKey; k != "" && len(k) != 32 {
		return fmt.Errorf("encryption key must be 32 bytes, got %d", len(k))
	}
	return nil
}

func apiKeyEnvName(provider string) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GOOGLE_API_KEY"
}

func apiKeyFromEnv(provider string) string {
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		return key
	}
	switch provider {
	case ProviderGoogleAI:
		return os.Getenv("GOOGLE_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
