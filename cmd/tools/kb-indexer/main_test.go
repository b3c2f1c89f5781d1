package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/knowledge"
	"sales-insight-workers/internal/models"
)

const knowledgeBase = `{
  "documents": [
    {"id": "schema-net", "type": "schema", "content": "Net_Amount_BDT is net revenue in taka."},
    {"id": "schema-div", "type": "schema", "content": "Division_Name is the business division."},
    {"id": "prod-cement", "type": "products", "content": "Cement is sold in 50kg bags.", "metadata": {"division": "Cement"}}
  ]
}`

func writeKnowledgeBase(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// keywordEmbedder maps text onto two axes so searches are deterministic.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "cement") {
		return []float32{0, 1}, nil
	}
	return []float32{1, 0}, nil
}

func (e keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (keywordEmbedder) Dimensions() int { return 2 }
func (keywordEmbedder) Name() string    { return "test:keyword" }

type fakeIndex struct {
	*knowledge.MemoryStore
	exists  bool
	dropped bool
}

func newFakeIndex(exists bool) *fakeIndex {
	return &fakeIndex{MemoryStore: knowledge.NewMemoryStore(keywordEmbedder{}), exists: exists}
}

func (f *fakeIndex) IndexName() string { return "sales-knowledge" }

func (f *fakeIndex) Exists(ctx context.Context) (bool, error) { return f.exists, nil }

func (f *fakeIndex) EnsureIndex(ctx context.Context) (bool, error) {
	if f.exists {
		return false, nil
	}
	f.exists = true
	return true, nil
}

func (f *fakeIndex) DeleteIndex(ctx context.Context) error {
	f.exists = false
	f.dropped = true
	return nil
}

func (f *fakeIndex) Count(ctx context.Context) (int, error) { return f.Len(), nil }

func TestRun_Validate(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"validate", "-file", writeKnowledgeBase(t, knowledgeBase)}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Found 3 documents")
	assert.Contains(t, out.String(), "products")

	out.Reset()
	err = run(context.Background(), []string{"validate", "-file", writeKnowledgeBase(t, `{"documents": [{"id": "x", "type": "weather", "content": "rain"}]}`)}, &out)
	require.Error(t, err)

	err = run(context.Background(), []string{"validate", "-file", writeKnowledgeBase(t, `{"documents": []}`)}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no documents")
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"reindex"}, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Usage: kb-indexer")
}

func TestRun_SearchRequiresQuery(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"search", "-type", "schema"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-query is required")

	err = run(context.Background(), []string{"search", "-query", "x", "-type", "weather"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown document type "weather"`)
}

func TestIndexKnowledgeBase(t *testing.T) {
	path := writeKnowledgeBase(t, knowledgeBase)

	t.Run("creates missing index", func(t *testing.T) {
		store := newFakeIndex(false)
		var out bytes.Buffer
		require.NoError(t, indexKnowledgeBase(context.Background(), store, path, false, &out))
		assert.Contains(t, out.String(), "Created index sales-knowledge")
		assert.Contains(t, out.String(), "Indexed 3 documents into sales-knowledge (3 total)")
		assert.False(t, store.dropped)
	})

	t.Run("recreate drops first", func(t *testing.T) {
		store := newFakeIndex(true)
		var out bytes.Buffer
		require.NoError(t, indexKnowledgeBase(context.Background(), store, path, true, &out))
		assert.True(t, store.dropped)
		assert.Contains(t, out.String(), "Dropped index sales-knowledge")
		assert.Contains(t, out.String(), "Created index sales-knowledge")
	})

	t.Run("bad file leaves index alone", func(t *testing.T) {
		store := newFakeIndex(true)
		var out bytes.Buffer
		err := indexKnowledgeBase(context.Background(), store, filepath.Join(t.TempDir(), "missing.json"), true, &out)
		require.Error(t, err)
		assert.False(t, store.dropped)
	})
}

func TestSearchKnowledgeBase(t *testing.T) {
	store := newFakeIndex(true)
	docs, err := knowledge.LoadDocuments(writeKnowledgeBase(t, knowledgeBase))
	require.NoError(t, err)
	require.NoError(t, store.Index(context.Background(), docs))

	var out bytes.Buffer
	require.NoError(t, searchKnowledgeBase(context.Background(), store, "cement bags", "", 1, &out))
	assert.Contains(t, out.String(), "Cement is sold in 50kg bags.")
	assert.NotContains(t, out.String(), "Net_Amount_BDT")

	out.Reset()
	require.NoError(t, searchKnowledgeBase(context.Background(), store, "cement", models.DocTypeSchema, 5, &out))
	assert.Contains(t, out.String(), "Division_Name is the business division.")
	assert.NotContains(t, out.String(), "50kg")
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printStatus(context.Background(), newFakeIndex(false), &out))
	assert.Contains(t, out.String(), "does not exist")

	out.Reset()
	require.NoError(t, printStatus(context.Background(), newFakeIndex(true), &out))
	assert.Contains(t, out.String(), "holds 0 documents")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short text", truncate("short\n  text", 20))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestRun_ValidateShippedKnowledgeBase(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"validate", "-file", filepath.Join("..", "..", "..", "configs", "knowledge_base.json")}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "query_examples")
}
