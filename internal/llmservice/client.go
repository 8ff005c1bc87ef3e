package llmservice

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"bible-rag/internal/config"
	"bible-rag/internal/models"
)

// Model is the generation surface used by the responder; every langchaingo llms.Model satisfies it.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// StreamFunc receives generated text fragments as they arrive.
type StreamFunc func(ctx context.Context, chunk []byte) error

var thinkTag = regexp.MustCompile(models.ThinkTag)

// NewModel creates the chat-completion client for the configured provider.
func NewModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating chat model")

	switch cfg.Provider {
	case config.ProviderGoogleAI:
		llm, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.Key),
			googleai.WithDefaultModel(cfg.Model),
			googleai.WithDefaultMaxTokens(cfg.MaxTokens),
			googleai.WithDefaultTemperature(cfg.Temperature),
		)
		if err != nil {
			return nil, fmt.Errorf("init googleai model: %w", err)
		}
		return llm, nil
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai model: %w", err)
		}
		return llm, nil
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init ollama model: %w", err)
		}
		return llm, nil
	}
	return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
}

// CallOptions maps the configured sampling parameters onto langchaingo call options.
func CallOptions(cfg config.LLMConfig) []llms.CallOption {
	var opts []llms.CallOption
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	opts = append(opts, llms.WithTemperature(cfg.Temperature))
	return opts
}

// GenerateContent calls the model and returns the first choice with any <think> block removed.
// When stream is set, fragments are forwarded to it as they are produced.
func GenerateContent(ctx context.Context, model Model, messages []llms.MessageContent, stream StreamFunc, opts ...llms.CallOption) (string, error) {
	if stream != nil {
		opts = append(opts, llms.WithStreamingFunc(stream))
	}
	res, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}
	if res == nil || len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", models.ErrGeneration)
	}

	text := strings.TrimSpace(thinkTag.ReplaceAllString(res.Choices[0].Content, ""))
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", models.ErrGeneration)
	}
	return text, nil
}

// Messages builds the system + human prompt pair.
func Messages(system, human string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	}
}
