package chromemdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bible-rag/internal/models"
)

func testDocs() []chromem.Document {
	return []chromem.Document{
		{ID: "verse:KJV:Genesis:1:1", Content: "In the beginning", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{models.MetaTestament: "Old"}},
		{ID: "verse:KJV:John:3:16", Content: "For God so loved", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{models.MetaTestament: "New"}},
		{ID: "verse:KJV:Psalms:23:1", Content: "The LORD is my shepherd", Embedding: []float32{0, 0, 1}, Metadata: map[string]string{models.MetaTestament: "Old"}},
	}
}

func staticBuild(docs []chromem.Document) BuildFunc {
	return func(context.Context) ([]chromem.Document, error) { return docs, nil }
}

func newMemoryManager(t *testing.T) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(Options{Collection: "bible_verses", InMemory: true})
	require.NoError(t, err)
	return m
}

func TestNewVectorDBManager_RequiresCollection(t *testing.T) {
	_, err := NewVectorDBManager(Options{InMemory: true})
	assert.ErrorIs(t, err, models.ErrNoCollection)
}

func TestQueryEmbedding_EmptyCollection(t *testing.T) {
	m := newMemoryManager(t)
	assert.False(t, m.IsPopulated())

	results, err := m.QueryEmbedding(context.Background(), []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryEmbedding_ClampsK(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()
	require.NoError(t, m.CreateDocs(ctx, testDocs()))

	results, err := m.QueryEmbedding(ctx, []float32{0.9, 0.1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "verse:KJV:Genesis:1:1", results[0].ID)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	assert.GreaterOrEqual(t, results[1].Similarity, results[2].Similarity)
}

func TestQueryEmbedding_Where(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()
	require.NoError(t, m.CreateDocs(ctx, testDocs()))

	results, err := m.QueryEmbedding(ctx, []float32{1, 1, 0}, 1, map[string]string{models.MetaTestament: "New"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "verse:KJV:John:3:16", results[0].ID)
}

func TestRebuild_Idempotent(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	n, err := m.Rebuild(ctx, staticBuild(testDocs()))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = m.Rebuild(ctx, staticBuild(testDocs()))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, m.Count())

	n, err = m.Rebuild(ctx, staticBuild(testDocs()[:1]))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "rebuild replaces rather than appends")
}

func TestRebuild_Concurrent(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()
	require.NoError(t, m.CreateDocs(ctx, testDocs()[:1]))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := m.Rebuild(ctx, func(context.Context) ([]chromem.Document, error) {
			close(started)
			<-release
			return testDocs(), nil
		})
		done <- err
	}()
	<-started

	_, err := m.Rebuild(ctx, staticBuild(testDocs()))
	assert.ErrorIs(t, err, models.ErrRebuildInProgress)
	assert.True(t, m.Stats().Rebuilding)

	// queries keep serving the old contents while documents are built
	results, err := m.QueryEmbedding(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 3, m.Count())
	assert.False(t, m.Stats().Rebuilding)
}

func TestRebuild_BuildError(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()
	require.NoError(t, m.CreateDocs(ctx, testDocs()))

	_, err := m.Rebuild(ctx, func(context.Context) ([]chromem.Document, error) {
		return nil, models.ErrEmbedding
	})
	assert.ErrorIs(t, err, models.ErrEmbedding)
	assert.Equal(t, 3, m.Count(), "failed rebuild keeps existing contents")
}

func TestRebuild_CancelledAfterBuild(t *testing.T) {
	m := newMemoryManager(t)
	require.NoError(t, m.CreateDocs(context.Background(), testDocs()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := m.Rebuild(ctx, func(context.Context) ([]chromem.Document, error) {
		cancel()
		return testDocs()[:1], nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, m.Count(), "cancelled rebuild keeps existing contents")
	assert.False(t, m.Stats().Rebuilding)

	n, err := m.Rebuild(context.Background(), staticBuild(testDocs()[:2]))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeleteCollection(t *testing.T) {
	m := newMemoryManager(t)
	require.NoError(t, m.CreateDocs(context.Background(), testDocs()))
	require.NoError(t, m.DeleteCollection())
	assert.False(t, m.IsPopulated())

	// the collection is usable again afterwards
	require.NoError(t, m.CreateDocs(context.Background(), testDocs()[:1]))
	assert.Equal(t, 1, m.Count())
}

func TestPersistentStore_Reopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chroma_db")
	ctx := context.Background()

	m, err := NewVectorDBManager(Options{Path: dir, Collection: "bible_verses"})
	require.NoError(t, err)
	_, err = m.Rebuild(ctx, staticBuild(testDocs()))
	require.NoError(t, err)

	reopened, err := NewVectorDBManager(Options{Path: dir, Collection: "bible_verses"})
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Count())

	stats := reopened.Stats()
	assert.True(t, stats.Ready)
	assert.Equal(t, dir, stats.Path)
	assert.Equal(t, "bible_verses", stats.Collection)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	key := "0123456789abcdef0123456789abcdef"
	file := filepath.Join(t.TempDir(), "bible_verses.gob.enc")

	src, err := NewVectorDBManager(Options{Collection: "bible_verses", InMemory: true, EncryptionKey: key})
	require.NoError(t, err)
	require.NoError(t, src.CreateDocs(ctx, testDocs()))
	require.NoError(t, src.Export(file))

	dst, err := NewVectorDBManager(Options{Collection: "bible_verses", InMemory: true, EncryptionKey: key})
	require.NoError(t, err)
	require.NoError(t, dst.Import(file))
	assert.Equal(t, 3, dst.Count())

	results, err := dst.QueryEmbedding(ctx, []float32{0, 0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "verse:KJV:Psalms:23:1", results[0].ID)
}

func TestExportPath(t *testing.T) {
	m := &VectorDBManager{opts: Options{Path: "data/chroma_db", Collection: "bible_verses", Compress: true}}
	assert.Equal(t, filepath.Join("data", "bible_verses.gob.gz"), m.ExportPath())
}
