package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"bible-rag/internal/config"
	"bible-rag/internal/embedding"
	"bible-rag/internal/llmservice"
	"bible-rag/internal/models"
)

// Index is the read side of the vector store.
type Index interface {
	QueryEmbedding(ctx context.Context, embedding []float32, k int, where map[string]string) ([]chromem.Result, error)
}

// RAG answers questions from retrieved scripture context.
type RAG struct {
	index    Index
	embedder embedding.Embedder
	model    llmservice.Model
	llm      config.LLMConfig
	cfg      config.RAGConfig
}

func NewRAG(index Index, embedder embedding.Embedder, model llmservice.Model, cfg *config.Config) *RAG {
	return &RAG{index: index, embedder: embedder, model: model, llm: cfg.LLM, cfg: cfg.RAG}
}

type askOptions struct {
	testament models.Testament
	chunkType models.ChunkType
	k         int
}

// Option narrows a single request.
type Option func(*askOptions)

// WithTestament limits retrieval to one testament.
func WithTestament(t models.Testament) Option {
	return func(o *askOptions) { o.testament = t }
}

// WithChunkType limits retrieval to verse or passage chunks.
func WithChunkType(t models.ChunkType) Option {
	return func(o *askOptions) { o.chunkType = t }
}

// WithK overrides the number of chunks retrieved.
func WithK(k int) Option {
	return func(o *askOptions) { o.k = k }
}

func (o askOptions) where() map[string]string {
	where := map[string]string{}
	if o.testament != "" {
		where[models.MetaTestament] = string(o.testament)
	}
	if o.chunkType != "" {
		where[models.MetaChunkType] = string(o.chunkType)
	}
	return where
}

// Answer runs retrieval and generation for one question.
func (r *RAG) Answer(ctx context.Context, question string, opts ...Option) (*models.Answer, error) {
	return r.answer(ctx, question, nil, opts)
}

// AnswerStream is Answer with generated fragments forwarded to fn as they arrive.
func (r *RAG) AnswerStream(ctx context.Context, question string, fn llmservice.StreamFunc, opts ...Option) (*models.Answer, error) {
	return r.answer(ctx, question, fn, opts)
}

func (r *RAG) answer(ctx context.Context, question string, stream llmservice.StreamFunc, opts []Option) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.ErrEmptyQuestion
	}
	start := time.Now()

	sources, err := r.Retrieve(ctx, question, opts...)
	if err != nil {
		return nil, err
	}

	ans := &models.Answer{Question: question, Sources: sources, NoContext: len(sources) == 0}
	var prompt string
	if ans.NoContext {
		prompt = fmt.Sprintf(models.NoContextPromptTemplate, question)
	} else {
		prompt = fmt.Sprintf(models.ContextPromptTemplate, FormatContext(sources), question)
	}

	text, err := llmservice.GenerateContent(ctx, r.model, llmservice.Messages(r.cfg.SystemPrompt, prompt), stream, llmservice.CallOptions(r.llm)...)
	if err != nil {
		return nil, err
	}
	ans.Text = text

	log.Info().
		Str("question", question).
		Strs("sources", ans.References()).
		Bool("no_context", ans.NoContext).
		Dur("took", time.Since(start)).
		Msg("Answered question")
	return ans, nil
}

// Retrieve embeds the question and returns the chunks at or above the relevance threshold,
// most similar first.
func (r *RAG) Retrieve(ctx context.Context, question string, opts ...Option) ([]models.Source, error) {
	o := askOptions{k: r.cfg.RetrievalK}
	for _, opt := range opts {
		opt(&o)
	}

	vec, err := embedding.EmbedQuery(ctx, r.embedder, question)
	if err != nil {
		return nil, err
	}
	results, err := r.index.QueryEmbedding(ctx, vec, o.k, o.where())
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	sources := make([]models.Source, 0, len(results))
	for _, res := range results {
		if r.cfg.MinRelevance > 0 && float64(res.Similarity) < r.cfg.MinRelevance {
			log.Debug().Str("id", res.ID).Float32("similarity", res.Similarity).Msg("Dropped weak match")
			continue
		}
		sources = append(sources, models.Source{
			ChunkMetadata: models.MetadataFromMap(res.Metadata),
			Text:          res.Content,
			Similarity:    res.Similarity,
		})
	}
	return sources, nil
}

// FormatContext renders sources as "[reference] text" blocks separated by blank lines.
func FormatContext(sources []models.Source) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, fmt.Sprintf("[%s] %s", s.Reference, s.Text))
	}
	return strings.Join(parts, models.ContextSeparator)
}

// FriendlyError turns a responder error into a message suitable for end users.
func FriendlyError(err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(err, models.ErrEmbedding):
		return "Sorry, I couldn't search the scriptures right now. Please try again."
	case errors.Is(err, models.ErrGeneration):
		return "Sorry, I encountered an error while generating an answer. Please try again."
	case errors.Is(err, models.ErrRebuildInProgress):
		return "The verse index is being rebuilt. Please try again shortly."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "The request timed out. Please try again."
	}
	return "Sorry, something went wrong. Please try again."
}
