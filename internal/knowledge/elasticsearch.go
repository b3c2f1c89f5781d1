package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"sales-insight-workers/internal/common/embedding"
	"sales-insight-workers/internal/models"
)

const (
	vectorField = "embedding"
	// numCandidatesFactor scales k to the per-shard kNN candidate pool.
	numCandidatesFactor = 10
	minCandidates       = 50
)

// ElasticsearchStore keeps passages in an index with a dense_vector field and
// answers searches with approximate kNN. Category filtering runs inside the
// kNN query as a term filter.
type ElasticsearchStore struct {
	client   *elasticsearch.Client
	index    string
	embedder embedding.Embedder
}

func NewElasticsearchStore(client *elasticsearch.Client, index string, embedder embedding.Embedder) *ElasticsearchStore {
	return &ElasticsearchStore{client: client, index: index, embedder: embedder}
}

func (s *ElasticsearchStore) IndexName() string {
	return s.index
}

type esSource struct {
	Content   string                 `json:"content"`
	Type      string                 `json:"type"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Embedding []float32              `json:"embedding,omitempty"`
}

func (s *ElasticsearchStore) mapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"content":  map[string]interface{}{"type": "text"},
				"type":     map[string]interface{}{"type": "keyword"},
				"metadata": map[string]interface{}{"type": "object", "enabled": false},
				vectorField: map[string]interface{}{
					"type":       "dense_vector",
					"dims":       s.embedder.Dimensions(),
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
}

// Exists reports whether the index has been created.
func (s *ElasticsearchStore) Exists(ctx context.Context) (bool, error) {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("check index %s: %s", s.index, res.Status())
}

// EnsureIndex creates the index with the vector mapping unless it exists.
// It reports whether the index was created.
func (s *ElasticsearchStore) EnsureIndex(ctx context.Context) (bool, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	body, err := json.Marshal(s.mapping())
	if err != nil {
		return false, err
	}
	res, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return false, fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return false, fmt.Errorf("create index %s: %s", s.index, responseError(res))
	}
	return true, nil
}

// DeleteIndex drops the index. A missing index is not an error.
func (s *ElasticsearchStore) DeleteIndex(ctx context.Context) error {
	res, err := s.client.Indices.Delete([]string{s.index}, s.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index %s: %s", s.index, responseError(res))
	}
	return nil
}

// Index embeds docs and writes them with one bulk request. Documents are
// keyed by id so re-indexing replaces them.
func (s *ElasticsearchStore) Index(ctx context.Context, docs []Document) error {
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

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, d := range docs {
		action := map[string]interface{}{"index": map[string]interface{}{"_id": d.ID}}
		if err := enc.Encode(action); err != nil {
			return err
		}
		src := esSource{Content: d.Content, Type: string(d.Type), Metadata: d.Metadata, Embedding: vectors[i]}
		if err := enc.Encode(src); err != nil {
			return err
		}
	}

	res, err := s.client.Bulk(
		&buf,
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index: %s", responseError(res))
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !bulk.Errors {
		return nil
	}
	var failed []string
	for _, item := range bulk.Items {
		for _, op := range item {
			if op.Error != nil {
				failed = append(failed, fmt.Sprintf("%s: %s", op.ID, op.Error.Reason))
			}
		}
	}
	return fmt.Errorf("bulk index: %d documents failed: %s", len(failed), strings.Join(failed, "; "))
}

// Count returns the number of indexed documents.
func (s *ElasticsearchStore) Count(ctx context.Context) (int, error) {
	res, err := s.client.Count(s.client.Count.WithContext(ctx), s.client.Count.WithIndex(s.index))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return 0, ErrIndexNotFound
	}
	if res.IsError() {
		return 0, fmt.Errorf("count %s: %s", s.index, responseError(res))
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return body.Count, nil
}

func (s *ElasticsearchStore) Search(ctx context.Context, query string, k int) ([]models.Snippet, error) {
	return s.knn(ctx, query, "", k)
}

func (s *ElasticsearchStore) SearchByType(ctx context.Context, query string, docType models.DocType, k int) ([]models.Snippet, error) {
	return s.knn(ctx, query, docType, k)
}

func (s *ElasticsearchStore) knn(ctx context.Context, query string, docType models.DocType, k int) ([]models.Snippet, error) {
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

	candidates := k * numCandidatesFactor
	if candidates < minCandidates {
		candidates = minCandidates
	}
	knn := map[string]interface{}{
		"field":          vectorField,
		"query_vector":   vec,
		"k":              k,
		"num_candidates": candidates,
	}
	if docType != "" {
		knn["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"type": string(docType)},
		}
	}
	body, err := json.Marshal(map[string]interface{}{
		"knn":     knn,
		"size":    k,
		"_source": []string{"content", "type", "metadata"},
	})
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, s.index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, responseError(res))
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Score  float64  `json:"_score"`
				Source esSource `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	out := make([]models.Snippet, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		doc := Document{ID: h.ID, Type: models.DocType(h.Source.Type), Content: h.Source.Content, Metadata: h.Source.Metadata}
		out = append(out, models.Snippet{
			Content:  doc.Content,
			Metadata: doc.snippetMetadata(),
			Score:    h.Score,
		})
	}
	return out, nil
}

func responseError(res *esapi.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", res.Status(), body.Error.Type, body.Error.Reason)
	}
	return res.Status()
}
