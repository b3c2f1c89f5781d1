package classifyquery

import (
	"fmt"
	"strings"

	"sales-insight-workers/internal/common/validation"
	"sales-insight-workers/internal/models"
)

const promptTemplate = `You are a query analysis expert for a sales intelligence system.

USER QUERY: %q

Analyze this query and provide a detailed breakdown in JSON format:

{
    "is_greeting": "yes/no (if this is just a greeting like 'hi', 'hello', 'hey')",
    "is_data_query": "yes/no (if this requires data from the sales database)",
    "intent": "What is the user trying to do? (analyze/compare/predict/recommend/investigate/greet/other)",
    "question_type": "%s",
    "time_scope": {
        "mentioned": "yes/no",
        "specific_periods": ["list any years, quarters, months, dates mentioned"],
        "comparison_needed": "yes/no (if comparing time periods)"
    },
    "entities": {
        "divisions": ["any divisions mentioned, or null"],
        "products": ["any products mentioned or null"],
        "branches": ["any branches/locations mentioned or null"],
        "metrics": ["what to measure: sales, revenue, profit, margin, quantity, growth, etc."]
    },
    "complexity": "simple/moderate/complex",
    "requires_comparison": "yes/no",
    "requires_calculation": "yes/no",
    "requires_forecasting": "yes/no",
    "requires_data_access": "yes/no (does this need to access the sales data?)",
    "context_needed": ["what business context would help answer this?"],
    "data_requirements": "Describe what data is needed to answer this query (or 'none' if not applicable)",
    "suggested_approach": "How should this query be answered?"
}

Return ONLY valid JSON, no explanation.
`

func buildPrompt(question string) string {
	types := make([]string, len(models.QuestionTypes))
	for i, t := range models.QuestionTypes {
		types[i] = string(t)
	}
	return fmt.Sprintf(promptTemplate, question, strings.Join(types, "/"))
}

var yesNoSchema = map[string]interface{}{
	"anyOf": []interface{}{
		map[string]interface{}{"type": "boolean"},
		map[string]interface{}{"type": "string", "pattern": `(?i)^\s*(yes|no)\s*$`},
	},
}

var stringListSchema = map[string]interface{}{
	"type":  []interface{}{"array", "null"},
	"items": map[string]interface{}{"type": []interface{}{"string", "null"}},
}

var textSchema = map[string]interface{}{"type": []interface{}{"string", "null"}}

func questionTypePattern() string {
	types := make([]string, len(models.QuestionTypes))
	for i, t := range models.QuestionTypes {
		types[i] = string(t)
	}
	return `(?i)^\s*(` + strings.Join(types, "|") + `)\s*$`
}

// classificationSchema accepts what the prompt asks for and nothing looser:
// question_type is required, flags are yes/no, lists hold strings.
var classificationSchema = validation.MustValidator(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"question_type"},
	"properties": map[string]interface{}{
		"is_greeting":   yesNoSchema,
		"is_data_query": yesNoSchema,
		"intent":        textSchema,
		"question_type": map[string]interface{}{"type": "string", "pattern": questionTypePattern()},
		"time_scope": map[string]interface{}{
			"type": []interface{}{"object", "null"},
			"properties": map[string]interface{}{
				"mentioned":         yesNoSchema,
				"specific_periods":  stringListSchema,
				"comparison_needed": yesNoSchema,
			},
		},
		"entities": map[string]interface{}{
			"type": []interface{}{"object", "null"},
			"properties": map[string]interface{}{
				"divisions": stringListSchema,
				"products":  stringListSchema,
				"branches":  stringListSchema,
				"metrics":   stringListSchema,
			},
		},
		"complexity":           textSchema,
		"requires_comparison":  yesNoSchema,
		"requires_calculation": yesNoSchema,
		"requires_forecasting": yesNoSchema,
		"requires_data_access": yesNoSchema,
		"context_needed":       stringListSchema,
		"data_requirements":    textSchema,
		"suggested_approach":   textSchema,
	},
})
