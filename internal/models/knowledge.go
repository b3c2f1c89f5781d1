// internal/models/knowledge.go
package models

import (
	"fmt"
	"strings"
)

// DocType tags a knowledge-base passage with its category.
type DocType string

const (
	DocTypeSchema           DocType = "schema"
	DocTypeProducts         DocType = "products"
	DocTypeBusinessEvents   DocType = "business_events"
	DocTypeSeasonalPatterns DocType = "seasonal_patterns"
	DocTypeRelationships    DocType = "relationships"
	DocTypeQueryExamples    DocType = "query_examples"
)

// DocTypes is the registration order of knowledge categories.
var DocTypes = []DocType{
	DocTypeSchema,
	DocTypeProducts,
	DocTypeBusinessEvents,
	DocTypeSeasonalPatterns,
	DocTypeRelationships,
	DocTypeQueryExamples,
}

// IsKnown reports whether t is a registered category.
func (t DocType) IsKnown() bool {
	for _, d := range DocTypes {
		if d == t {
			return true
		}
	}
	return false
}

// Heading renders the section title used in formatted context, e.g.
// "BUSINESS EVENTS".
func (t DocType) Heading() string {
	return strings.ToUpper(strings.ReplaceAll(string(t), "_", " "))
}

// Snippet is one retrieved knowledge passage.
type Snippet struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float64                `json:"score,omitempty"`
}

// Type reads the category tag from the metadata.
func (s Snippet) Type() DocType {
	t, _ := s.Metadata["type"].(string)
	return DocType(t)
}

// ContextGroup holds the passages retrieved for one category.
type ContextGroup struct {
	Type     DocType  `json:"type"`
	Passages []string `json:"passages"`
}

// RetrievedContext is the knowledge retrieved for one question.
type RetrievedContext struct {
	Success bool           `json:"success"`
	Text    string         `json:"context"`
	Groups  []ContextGroup `json:"groups"`
}

// Passages flattens every group in order.
func (r *RetrievedContext) Passages() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, g := range r.Groups {
		out = append(out, g.Passages...)
	}
	return out
}

// FormatContext renders groups as "=== HEADING ===" sections with numbered
// passages.
func FormatContext(groups []ContextGroup) string {
	parts := make([]string, 0, len(groups)*4)
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("\n=== %s ===", g.Type.Heading()))
		for i, p := range g.Passages {
			parts = append(parts, fmt.Sprintf("\n[%d] %s", i+1, p))
		}
	}
	return strings.Join(parts, "\n")
}

// UnavailableContext stands in when knowledge retrieval fails.
const UnavailableContext = "Unable to retrieve business context"
