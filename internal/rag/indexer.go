package rag

import (
	"context"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"bible-rag/internal/chromemdb"
	"bible-rag/internal/config"
	"bible-rag/internal/embedding"
	"bible-rag/internal/models"
	"bible-rag/internal/parser"
)

// Indexer builds the vector index from the verse corpus.
type Indexer struct {
	store    *chromemdb.VectorDBManager
	embedder embedding.Embedder
	limiter  *rate.Limiter
	rag      config.RAGConfig
	corpus   config.StoreConfig
}

func NewIndexer(store *chromemdb.VectorDBManager, embedder embedding.Embedder, cfg *config.Config) *Indexer {
	return &Indexer{
		store:    store,
		embedder: embedder,
		limiter:  embedding.NewLimiter(cfg.RAG.EmbedRateLimit),
		rag:      cfg.RAG,
		corpus:   cfg.Store,
	}
}

// Rebuild reloads the corpus, re-embeds every chunk and replaces the index contents.
// It returns the number of indexed chunks.
func (i *Indexer) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := i.store.Rebuild(ctx, i.documents)
	if err != nil {
		return 0, err
	}
	log.Info().Int("chunks", n).Dur("took", time.Since(start)).Msg("Index rebuilt")
	return n, nil
}

// Ensure rebuilds only when the index is empty and returns the current chunk count.
func (i *Indexer) Ensure(ctx context.Context) (int, error) {
	if i.store.IsPopulated() {
		count := i.store.Count()
		log.Info().Int("chunks", count).Msg("Loaded existing vector store")
		return count, nil
	}
	log.Info().Msg("Vector store empty, building index")
	return i.Rebuild(ctx)
}

func (i *Indexer) Stats() models.IndexStats {
	return i.store.Stats()
}

func (i *Indexer) documents(ctx context.Context) ([]chromem.Document, error) {
	verses, err := parser.LoadBible(i.corpus.CorpusPath, i.corpus.Translation)
	if err != nil {
		return nil, err
	}

	verseChunks, passageChunks := parser.BuildChunks(verses, parser.ChunkOptions{
		ChunkSize:    i.rag.ChunkSize,
		ChunkOverlap: i.rag.ChunkOverlap,
		Passages:     i.rag.PassagesEnabled(),
	})
	chunks := append(verseChunks, passageChunks...)
	log.Info().
		Int("verses", len(verseChunks)).
		Int("passages", len(passageChunks)).
		Msg("Built documents")

	texts := make([]string, len(chunks))
	for j, c := range chunks {
		texts[j] = c.Text
	}
	vectors, err := embedding.GenerateEmbeddings(ctx, i.embedder, texts, i.rag.EmbedBatchSize, i.limiter)
	if err != nil {
		return nil, err
	}

	docs := make([]chromem.Document, len(chunks))
	for j, c := range chunks {
		docs[j] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Metadata:  c.Metadata.ToMap(),
			Embedding: vectors[j],
		}
	}
	return docs, nil
}
