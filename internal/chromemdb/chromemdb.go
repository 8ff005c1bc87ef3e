package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"bible-rag/internal/models"
)

// Options configures a VectorDBManager.
type Options struct {
	Path          string
	Collection    string
	InMemory      bool
	Compress      bool
	EncryptionKey string
}

// VectorDBManager encapsulates the chromem-go database and the verse collection.
// Queries hold a read lock; a rebuild takes the write lock only while it swaps the
// collection contents.
type VectorDBManager struct {
	mu         sync.RWMutex
	rebuild    sync.Mutex
	rebuilding atomic.Bool

	db         *chromem.DB
	collection *chromem.Collection
	opts       Options
}

// NewVectorDBManager initializes a new vector database manager and opens the collection.
func NewVectorDBManager(opts Options) (*VectorDBManager, error) {
	if opts.Collection == "" {
		return nil, models.ErrNoCollection
	}
	var db *chromem.DB
	var err error
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{db: db, opts: opts}
	if _, err := m.GetOrCreateCollection(); err != nil {
		return nil, err
	}
	log.Debug().
		Str("path", opts.Path).
		Str("collection", opts.Collection).
		Int("count", m.Count()).
		Msg("Opened vector store")
	return m, nil
}

// Documents and queries always carry precomputed vectors; chromem would otherwise
// fall back to OpenAI for text.
func noEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: documents must be embedded before they are added", models.ErrEmbedding)
}

// GetOrCreateCollection opens the configured collection, creating it when missing.
func (m *VectorDBManager) GetOrCreateCollection() (*chromem.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCollection()
}

func (m *VectorDBManager) openCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.opts.Collection, nil, noEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// CreateDocs adds documents to the collection; documents with an existing ID are replaced.
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.addDocs(ctx, documents)
}

func (m *VectorDBManager) addDocs(ctx context.Context, documents []chromem.Document) error {
	if m.collection == nil {
		return models.ErrNoCollection
	}
	if len(documents) == 0 {
		return nil
	}
	if err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// QueryEmbedding returns up to k documents ordered by descending cosine similarity.
// k is clamped to the collection size and an empty collection yields no results.
func (m *VectorDBManager) QueryEmbedding(ctx context.Context, embedding []float32, k int, where map[string]string) ([]chromem.Result, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.collection == nil {
		return nil, models.ErrNoCollection
	}

	count := m.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := m.collection.QueryEmbedding(ctx, embedding, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// BuildFunc produces the complete document set for a rebuild.
type BuildFunc func(ctx context.Context) ([]chromem.Document, error)

// Rebuild replaces the collection contents with the documents returned by build.
// build runs without blocking queries against the current contents. Only one rebuild
// may run at a time; a concurrent call fails with models.ErrRebuildInProgress.
func (m *VectorDBManager) Rebuild(ctx context.Context, build BuildFunc) (int, error) {
	if !m.rebuild.TryLock() {
		return 0, models.ErrRebuildInProgress
	}
	defer m.rebuild.Unlock()
	m.rebuilding.Store(true)
	defer m.rebuilding.Store(false)

	docs, err := build(ctx)
	if err != nil {
		return 0, err
	}
	// last point at which a cancelled caller leaves the old contents untouched
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("rebuild cancelled: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// chromem stops adding silently on a cancelled context, so the swap runs to completion
	swapCtx := context.WithoutCancel(ctx)
	if err := m.db.DeleteCollection(m.opts.Collection); err != nil {
		return 0, fmt.Errorf("failed to drop collection: %w", err)
	}
	if _, err := m.openCollection(); err != nil {
		return 0, err
	}
	if err := m.addDocs(swapCtx, docs); err != nil {
		return 0, err
	}

	count := m.collection.Count()
	if count != uniqueIDs(docs) {
		return count, fmt.Errorf("rebuild incomplete: %d of %d documents stored", count, uniqueIDs(docs))
	}
	log.Info().Int("documents", count).Str("collection", m.opts.Collection).Msg("Rebuilt vector store")
	return count, nil
}

func uniqueIDs(docs []chromem.Document) int {
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		seen[d.ID] = struct{}{}
	}
	return len(seen)
}

// DeleteCollection drops all documents and leaves an empty collection behind.
func (m *VectorDBManager) DeleteCollection() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(m.opts.Collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.openCollection()
	return err
}

func (m *VectorDBManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// IsPopulated reports whether the collection holds at least one document.
func (m *VectorDBManager) IsPopulated() bool {
	return m.Count() > 0
}

func (m *VectorDBManager) Stats() models.IndexStats {
	count := m.Count()
	path := m.opts.Path
	if m.opts.InMemory {
		path = ":memory:"
	}
	return models.IndexStats{
		Ready:      count > 0,
		Count:      count,
		Path:       path,
		Collection: m.opts.Collection,
		Rebuilding: m.rebuilding.Load(),
	}
}

// ExportPath is the default backup location next to the store directory.
func (m *VectorDBManager) ExportPath() string {
	ext := ".gob"
	if m.opts.Compress {
		ext += ".gz"
	}
	if m.opts.EncryptionKey != "" {
		ext += ".enc"
	}
	return filepath.Join(filepath.Dir(filepath.Clean(m.opts.Path)), m.opts.Collection+ext)
}

// Export writes the collection to filePath, encrypted when an encryption key is configured.
func (m *VectorDBManager) Export(filePath string) error {
	if filePath == "" {
		filePath = m.ExportPath()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	log.Debug().
		Str("collection", m.opts.Collection).
		Str("file", filePath).
		Bool("compress", m.opts.Compress).
		Bool("encrypted", m.opts.EncryptionKey != "").
		Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.opts.Compress, m.opts.EncryptionKey, m.opts.Collection); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the collection with the one stored in filePath.
func (m *VectorDBManager) Import(filePath string) error {
	if filePath == "" {
		filePath = m.ExportPath()
	}
	if !m.rebuild.TryLock() {
		return models.ErrRebuildInProgress
	}
	defer m.rebuild.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.ImportFromFile(filePath, m.opts.EncryptionKey, m.opts.Collection); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(m.opts.Collection, noEmbeddingFunc)
	if c == nil {
		return fmt.Errorf("%w: %s not found in %s", models.ErrNoCollection, m.opts.Collection, filePath)
	}
	m.collection = c
	log.Info().Int("documents", c.Count()).Str("file", filePath).Msg("Imported collection")
	return nil
}
