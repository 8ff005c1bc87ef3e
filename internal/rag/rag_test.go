package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bible-rag/internal/chromemdb"
	"bible-rag/internal/config"
	"bible-rag/internal/models"
	"bible-rag/internal/rag/ragtest"
)

type fixture struct {
	cfg      *config.Config
	store    *chromemdb.VectorDBManager
	embedder *ragtest.Embedder
	model    *ragtest.Model
	indexer  *Indexer
	rag      *RAG
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := ragtest.Config(t.TempDir())
	for _, m := range mutate {
		m(cfg)
	}
	store, err := chromemdb.NewVectorDBManager(chromemdb.Options{Collection: cfg.Store.Collection, InMemory: true})
	require.NoError(t, err)

	f := &fixture{cfg: cfg, store: store, embedder: ragtest.NewEmbedder(), model: &ragtest.Model{}}
	f.indexer = NewIndexer(store, f.embedder, cfg)
	f.rag = NewRAG(store, f.embedder, f.model, cfg)

	_, err = f.indexer.Ensure(context.Background())
	require.NoError(t, err)
	return f
}

func TestAnswer_Creation(t *testing.T) {
	f := newFixture(t)

	ans, err := f.rag.Answer(context.Background(), "What does the Bible say about creation?")
	require.NoError(t, err)
	assert.False(t, ans.NoContext)
	assert.Contains(t, ans.References(), "Genesis 1:1")
	assert.NotEmpty(t, ans.Text)

	for i := 1; i < len(ans.Sources); i++ {
		assert.GreaterOrEqual(t, ans.Sources[i-1].Similarity, ans.Sources[i].Similarity)
	}

	req := f.model.Last()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, models.SystemPrompt, ragtest.Text(req.Messages[0]))
	human := ragtest.Text(req.Messages[1])
	assert.Contains(t, human, "[Genesis 1:1] In the beginning God created the heaven and the earth.")
	assert.True(t, strings.HasSuffix(human, "Question: What does the Bible say about creation?"))
	assert.Equal(t, 1000, req.Options.MaxTokens)
	assert.InDelta(t, 0.7, req.Options.Temperature, 1e-9)
}

func TestAnswer_NoRelevantContext(t *testing.T) {
	f := newFixture(t)

	ans, err := f.rag.Answer(context.Background(), "quantum computing")
	require.NoError(t, err)
	assert.True(t, ans.NoContext)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources)
	assert.NotEmpty(t, ans.Text)

	human := ragtest.Text(f.model.Last().Messages[1])
	assert.Contains(t, human, "No matching scripture passages were found")
	assert.NotContains(t, human, "Context:")
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	f := newFixture(t)
	calls := f.embedder.Calls

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := f.rag.Answer(context.Background(), q)
		assert.ErrorIs(t, err, models.ErrEmptyQuestion)
	}
	assert.Equal(t, calls, f.embedder.Calls, "no embedding call for an empty question")
	assert.Zero(t, f.model.Count(), "no generation call for an empty question")
}

func TestAnswer_EmbeddingError(t *testing.T) {
	f := newFixture(t)
	upstream := errors.New("quota exhausted")
	f.embedder.Err = upstream

	_, err := f.rag.Answer(context.Background(), "creation")
	assert.ErrorIs(t, err, models.ErrEmbedding)
	assert.ErrorIs(t, err, upstream)
	assert.Zero(t, f.model.Count())
}

func TestAnswer_GenerationError(t *testing.T) {
	f := newFixture(t)
	upstream := errors.New("model overloaded")
	f.model.Err = upstream

	_, err := f.rag.Answer(context.Background(), "What does the Bible say about creation?")
	assert.ErrorIs(t, err, models.ErrGeneration)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, "Sorry, I encountered an error while generating an answer. Please try again.", FriendlyError(err))
}

func TestAnswer_Filters(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.RAG.MinRelevance = 0 })

	ans, err := f.rag.Answer(context.Background(), "creation shepherd loved", WithChunkType(models.ChunkTypePassage))
	require.NoError(t, err)
	require.NotEmpty(t, ans.Sources)
	for _, s := range ans.Sources {
		assert.Equal(t, models.ChunkTypePassage, s.ChunkType)
	}

	ans, err = f.rag.Answer(context.Background(), "creation shepherd loved", WithTestament(models.NewTestament), WithK(2))
	require.NoError(t, err)
	require.Len(t, ans.Sources, 2)
	for _, s := range ans.Sources {
		assert.Equal(t, models.NewTestament, s.Testament)
		assert.Equal(t, "John", s.Book)
	}
}

func TestAnswerStream(t *testing.T) {
	f := newFixture(t)

	var streamed strings.Builder
	ans, err := f.rag.AnswerStream(context.Background(), "What does the Bible say about creation?", func(_ context.Context, chunk []byte) error {
		streamed.Write(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ans.Text, streamed.String())
}

func TestIndexer_RebuildTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.store.Count()
	// 8 verses + 3 passages
	assert.Equal(t, 11, first)

	n, err := f.indexer.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, n)
	n, err = f.indexer.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, n)
}

func TestIndexer_EnsureSkipsPopulated(t *testing.T) {
	f := newFixture(t)
	calls := f.embedder.Calls

	n, err := f.indexer.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, calls, f.embedder.Calls)
}

func TestIndexer_PassagesDisabled(t *testing.T) {
	off := false
	f := newFixture(t, func(c *config.Config) { c.RAG.Passages = &off })
	assert.Equal(t, 8, f.store.Count())
}

func TestFormatContext(t *testing.T) {
	sources := []models.Source{
		{ChunkMetadata: models.ChunkMetadata{Reference: "John 3:16"}, Text: "For God so loved the world"},
		{ChunkMetadata: models.ChunkMetadata{Reference: "Psalms 23:1"}, Text: "The LORD is my shepherd"},
	}
	assert.Equal(t, "[John 3:16] For God so loved the world\n\n[Psalms 23:1] The LORD is my shepherd", FormatContext(sources))
	assert.Empty(t, FormatContext(nil))
}

func TestFriendlyError(t *testing.T) {
	assert.Equal(t, "Please enter a question.", FriendlyError(models.ErrEmptyQuestion))
	assert.Contains(t, FriendlyError(models.ErrRebuildInProgress), "rebuilt")
	assert.Contains(t, FriendlyError(errors.New("boom")), "something went wrong")
}
