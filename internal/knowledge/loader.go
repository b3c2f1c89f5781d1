package knowledge

import (
	"fmt"
	"os"

	"sales-insight-workers/internal/common/validation"
	"sales-insight-workers/internal/models"
)

type knowledgeBase struct {
	Documents []Document `json:"documents"`
}

var knowledgeBaseSchema = validation.MustValidator(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"documents"},
	"properties": map[string]interface{}{
		"documents": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "type", "content"},
				"properties": map[string]interface{}{
					"id":       map[string]interface{}{"type": "string", "minLength": 1},
					"type":     map[string]interface{}{"enum": docTypeEnum()},
					"content":  map[string]interface{}{"type": "string", "minLength": 1},
					"metadata": map[string]interface{}{"type": "object"},
				},
			},
		},
	},
})

func docTypeEnum() []interface{} {
	out := make([]interface{}, len(models.DocTypes))
	for i, t := range models.DocTypes {
		out[i] = string(t)
	}
	return out
}

// LoadDocuments reads a knowledge-base JSON file of the form
// {"documents": [{"id", "type", "content", "metadata"}]}.
func LoadDocuments(path string) ([]Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return ParseDocuments(raw)
}

// ParseDocuments validates and decodes a knowledge-base document. Ids must be
// unique.
func ParseDocuments(raw []byte) ([]Document, error) {
	var kb knowledgeBase
	if err := knowledgeBaseSchema.Decode(raw, &kb); err != nil {
		return nil, fmt.Errorf("knowledge base: %w", err)
	}
	seen := make(map[string]bool, len(kb.Documents))
	for _, d := range kb.Documents {
		if seen[d.ID] {
			return nil, fmt.Errorf("knowledge base: duplicate document id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return kb.Documents, nil
}

// CountByType tallies documents per category.
func CountByType(docs []Document) map[models.DocType]int {
	out := make(map[models.DocType]int, len(models.DocTypes))
	for _, d := range docs {
		out[d.Type]++
	}
	return out
}
