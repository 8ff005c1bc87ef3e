package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"bible-rag/internal/chat"
	"bible-rag/internal/chromemdb"
	"bible-rag/internal/config"
	"bible-rag/internal/db"
	"bible-rag/internal/embedding"
	"bible-rag/internal/llmservice"
	"bible-rag/internal/rag"
)

var _ chat.Archiver = (*db.Archive)(nil)

// app holds the wired components shared by the commands.
type app struct {
	store   *chromemdb.VectorDBManager
	indexer *rag.Indexer
	rag     *rag.RAG
	archive *db.Archive
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder, err := embedding.NewEmbedder(ctx, cfg.EmbedLLM, cfg.RAG.EmbedBatchSize)
	if err != nil {
		return nil, err
	}
	model, err := llmservice.NewModel(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		store:   store,
		indexer: rag.NewIndexer(store, embedder, cfg),
		rag:     rag.NewRAG(store, embedder, model, cfg),
	}
	if cfg.Archive.DSN != "" {
		if a.archive, err = db.Open(ctx, cfg.Archive.DSN, cfg.Archive.Debug); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func openStore(cfg *config.Config) (*chromemdb.VectorDBManager, error) {
	return chromemdb.NewVectorDBManager(chromemdb.Options{
		Path:          cfg.Store.Path,
		Collection:    cfg.Store.Collection,
		Compress:      cfg.Store.Compress,
		EncryptionKey: cfg.Store.EncryptionKey,
	})
}

func (a *app) sessions() *chat.Store {
	if a.archive == nil {
		return chat.NewStore(nil)
	}
	return chat.NewStore(a.archive)
}

func (a *app) Close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing archive")
		}
	}
}
