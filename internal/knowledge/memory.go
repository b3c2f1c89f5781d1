package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"sales-insight-workers/internal/common/embedding"
	"sales-insight-workers/internal/models"
)

// overFetch is how many more candidates a type-filtered search pulls before
// filtering.
const overFetch = 3

type memoryEntry struct {
	doc    Document
	vector []float32
}

// MemoryStore is an in-process index searched by cosine similarity. It is
// meant for development and tests; production uses ElasticsearchStore.
type MemoryStore struct {
	embedder embedding.Embedder

	mu      sync.RWMutex
	entries []memoryEntry
}

func NewMemoryStore(embedder embedding.Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

// Index embeds docs and adds them to the store.
func (s *MemoryStore) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range docs {
		s.entries = append(s.entries, memoryEntry{doc: d, vector: vectors[i]})
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]models.Snippet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return []models.Snippet{}, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrSearchFailed, err)
	}

	s.mu.RLock()
	scored := make([]models.Snippet, 0, len(s.entries))
	for _, e := range s.entries {
		scored = append(scored, models.Snippet{
			Content:  e.doc.Content,
			Metadata: e.doc.snippetMetadata(),
			Score:    cosine(vec, e.vector),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// SearchByType runs an unfiltered search for overFetch*k candidates and keeps
// the first k of the requested category.
func (s *MemoryStore) SearchByType(ctx context.Context, query string, docType models.DocType, k int) ([]models.Snippet, error) {
	candidates, err := s.Search(ctx, query, k*overFetch)
	if err != nil {
		return nil, err
	}
	out := make([]models.Snippet, 0, k)
	for _, c := range candidates {
		if c.Type() != docType {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
