// Package knowledge stores and searches the business knowledge base that
// grounds analysis prompts.
package knowledge

import (
	"context"
	"errors"

	"sales-insight-workers/internal/models"
)

var (
	ErrEmptyQuery    = errors.New("search query is empty")
	ErrIndexNotFound = errors.New("INDEX_NOT_FOUND")
	ErrSearchFailed  = errors.New("SEARCH_QUERY_FAILED")
)

// Store is a similarity index over knowledge passages.
type Store interface {
	// Search returns the k passages nearest to query, best first.
	Search(ctx context.Context, query string, k int) ([]models.Snippet, error)
	// SearchByType is Search restricted to one category.
	SearchByType(ctx context.Context, query string, docType models.DocType, k int) ([]models.Snippet, error)
}

// Indexer accepts documents into a store.
type Indexer interface {
	Index(ctx context.Context, docs []Document) error
}

// Document is one knowledge-base entry before embedding.
type Document struct {
	ID       string                 `json:"id"`
	Type     models.DocType         `json:"type"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// snippetMetadata merges the document metadata with its id and type.
func (d Document) snippetMetadata() map[string]interface{} {
	md := make(map[string]interface{}, len(d.Metadata)+2)
	for k, v := range d.Metadata {
		md[k] = v
	}
	md["type"] = string(d.Type)
	if d.ID != "" {
		md["id"] = d.ID
	}
	return md
}
