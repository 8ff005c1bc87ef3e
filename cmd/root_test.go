package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bible-rag/internal/chromemdb"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func TestRetrievalOptions(t *testing.T) {
	opts, err := retrievalOptions("old", "passage", 3)
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	opts, err = retrievalOptions("", "", 0)
	require.NoError(t, err)
	assert.Empty(t, opts)

	_, err = retrievalOptions("apocrypha", "", 0)
	assert.Error(t, err)

	_, err = retrievalOptions("", "chapter", 0)
	assert.ErrorContains(t, err, "verse or passage")
}

func isolatedEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "missing.yaml"))
	t.Setenv("CHROMA_DB_PATH", filepath.Join(dir, "chroma_db"))
	t.Setenv("BIBLE_DATA_PATH", filepath.Join(dir, "KJV.json"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestStatusCommand(t *testing.T) {
	dir := isolatedEnv(t)

	out := execute(t, "status")

	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Nil(t, report.Corpus)
	assert.False(t, report.Index.Ready)
	assert.Equal(t, "bible_verses", report.Index.Collection)
	assert.Equal(t, filepath.Join(dir, "chroma_db"), report.Index.Path)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ask", "chat", "serve", "setup", "status", "index"} {
		assert.True(t, names[want], want)
	}
}

func TestIndexDropCommand(t *testing.T) {
	dir := isolatedEnv(t)
	storePath := filepath.Join(dir, "chroma_db")

	store, err := chromemdb.NewVectorDBManager(chromemdb.Options{Path: storePath, Collection: "bible_verses"})
	require.NoError(t, err)
	require.NoError(t, store.CreateDocs(context.Background(), []chromem.Document{
		{ID: "verse:KJV:Genesis:1:1", Content: "In the beginning", Embedding: []float32{1, 0}},
		{ID: "verse:KJV:John:3:16", Content: "For God so loved", Embedding: []float32{0, 1}},
	}))

	out := execute(t, "index", "drop")
	assert.Contains(t, out, "Dropped 2 documents from bible_verses")

	reopened, err := chromemdb.NewVectorDBManager(chromemdb.Options{Path: storePath, Collection: "bible_verses"})
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Count())
}
