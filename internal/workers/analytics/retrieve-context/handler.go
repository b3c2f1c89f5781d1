// internal/workers/analytics/retrieve-context/handler.go
package retrievecontext

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "sales-insight-workers/internal/common/errors"
	"sales-insight-workers/internal/common/llm"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/metrics"
	"sales-insight-workers/internal/common/validation"
	"sales-insight-workers/internal/knowledge"
	"sales-insight-workers/internal/models"
)

const (
	TaskType = "retrieve-context"
)

// DefaultContextTypes is used when the model's category choice cannot be read.
var DefaultContextTypes = []models.DocType{
	models.DocTypeSchema,
	models.DocTypeProducts,
	models.DocTypeBusinessEvents,
}

const selectionPrompt = `Given this query and analysis, determine what types of business context would be helpful.

QUERY: %q

ANALYSIS:
%s

Available context types:
- schema: Database schema, column descriptions, table structure (CRITICAL for code generation!)
- products: Product information and catalog (CRITICAL for product queries!)
- business_events: Historical business events (supply shortages, price wars, etc.)
- seasonal_patterns: Seasonal trends (Eid, monsoon, construction season)
- relationships: Relationships between data entities
- query_examples: Example queries and patterns

IMPORTANT: For ANY data query, ALWAYS include "schema" and "products" first!

Which context types are most relevant? Return as a JSON list with schema and products first.

Example: {"context_types": ["schema", "products", "business_events", "seasonal_patterns"]}

Return ONLY valid JSON.
`

var selectionSchema = validation.MustValidator(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"context_types"},
	"properties": map[string]interface{}{
		"context_types": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
})

type Handler struct {
	config       *Config
	gateway      llm.Gateway
	store        knowledge.Store
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, gateway llm.Gateway, store knowledge.Store, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		gateway:      gateway,
		store:        store,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute picks the relevant knowledge categories and searches each one.
// Groups come back in the order the categories were chosen.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, apperrors.NewInvalidInputError("question is required")
	}

	types := h.SelectTypes(ctx, input.Question, input.Classification)

	var groups []models.ContextGroup
	total := 0
	for _, t := range types {
		k := h.config.SecondaryK
		if t == models.DocTypeSchema || t == models.DocTypeProducts {
			k = h.config.PrimaryK
		}
		passages, err := h.search(ctx, input.Question, t, k)
		if err != nil {
			return nil, apperrors.NewContextRetrievalFailedError(err)
		}
		if len(passages) == 0 {
			continue
		}
		groups = append(groups, models.ContextGroup{Type: t, Passages: passages})
		total += len(passages)
	}

	h.logger.Info("context retrieved", map[string]interface{}{
		"requestId": input.RequestID,
		"types":     types,
		"passages":  total,
	})

	return &Output{Context: &models.RetrievedContext{
		Success: true,
		Text:    models.FormatContext(groups),
		Groups:  groups,
	}}, nil
}

// SelectTypes asks the model which categories help. Schema and products are
// always included; an unreadable answer falls back to DefaultContextTypes.
func (h *Handler) SelectTypes(ctx context.Context, question string, c *models.Classification) []models.DocType {
	analysis, _ := json.MarshalIndent(c, "", "  ")
	response := h.gateway.Generate(ctx, fmt.Sprintf(selectionPrompt, question, analysis))

	types, err := decodeTypes(response)
	if err != nil {
		h.logger.Warn("context type selection unreadable, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
		types = append([]models.DocType(nil), DefaultContextTypes...)
	}

	if !containsType(types, models.DocTypeSchema) {
		types = insertType(types, 0, models.DocTypeSchema)
	}
	if !containsType(types, models.DocTypeProducts) {
		types = insertType(types, 1, models.DocTypeProducts)
	}
	return types
}

func decodeTypes(response string) ([]models.DocType, error) {
	if llm.IsFailureText(response) {
		return nil, fmt.Errorf("model call failed: %s", response)
	}
	raw, ok := llm.ExtractJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var sel struct {
		ContextTypes []string `json:"context_types"`
	}
	if err := selectionSchema.Decode([]byte(raw), &sel); err != nil {
		return nil, err
	}

	var out []models.DocType
	for _, s := range sel.ContextTypes {
		t := models.DocType(strings.ToLower(strings.TrimSpace(s)))
		if t.IsKnown() && !containsType(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// search falls back to an unfiltered search when the category has no hits.
func (h *Handler) search(ctx context.Context, question string, t models.DocType, k int) ([]string, error) {
	snippets, err := h.store.SearchByType(ctx, question, t, k)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 {
		if snippets, err = h.store.Search(ctx, question, k); err != nil {
			return nil, err
		}
	}

	passages := make([]string, 0, len(snippets))
	for _, s := range snippets {
		if s.Content != "" {
			passages = append(passages, s.Content)
		}
	}
	return passages, nil
}

func containsType(types []models.DocType, t models.DocType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func insertType(types []models.DocType, at int, t models.DocType) []models.DocType {
	if at > len(types) {
		at = len(types)
	}
	out := make([]models.DocType, 0, len(types)+1)
	out = append(out, types[:at]...)
	out = append(out, t)
	return append(out, types[at:]...)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
