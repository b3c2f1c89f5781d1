// internal/workers/analytics/classify-query/handler.go
package classifyquery

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
	"sales-insight-workers/internal/models"
)

const (
	TaskType = "classify-query"
)

type Handler struct {
	config       *Config
	gateway      llm.Gateway
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, gateway llm.Gateway, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		gateway:      gateway,
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

// Execute classifies one question. A model answer that cannot be decoded is
// not an error: the record comes back with Error set and the conversational
// route.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, apperrors.NewInvalidInputError("question is required")
	}

	c := h.Classify(ctx, input.Question)
	route := RouteAnalytics
	if c.IsConversational() {
		route = RouteConversational
	}

	fields := map[string]interface{}{
		"requestId": input.RequestID,
		"route":     route,
	}
	if c.Failed() {
		fields["error"] = c.Error
		h.logger.Warn("classification could not be decoded", fields)
	} else {
		fields["questionType"] = string(c.Type())
		fields["intent"] = c.Intent
		h.logger.Info("question classified", fields)
	}

	return &Output{Classification: c, Route: route}, nil
}

// Classify makes one model call and decodes the answer strictly. There is no
// retry.
func (h *Handler) Classify(ctx context.Context, question string) *models.Classification {
	response := h.gateway.Generate(ctx, buildPrompt(question))
	if llm.IsFailureText(response) {
		return &models.Classification{Error: response, RawResponse: response}
	}
	return decode(response)
}

func decode(response string) *models.Classification {
	raw, ok := llm.ExtractJSONObject(response)
	if !ok {
		return &models.Classification{Error: "no JSON object in response", RawResponse: response}
	}

	var c models.Classification
	if err := classificationSchema.Decode([]byte(raw), &c); err != nil {
		return &models.Classification{Error: err.Error(), RawResponse: response}
	}
	c.QuestionType = models.QuestionType(strings.ToLower(strings.TrimSpace(string(c.QuestionType))))
	if c.Entities != nil {
		c.Entities.Divisions = clean(c.Entities.Divisions)
		c.Entities.Products = clean(c.Entities.Products)
		c.Entities.Branches = clean(c.Entities.Branches)
		c.Entities.Metrics = clean(c.Entities.Metrics)
	}
	if c.TimeScope != nil {
		c.TimeScope.SpecificPeriods = clean(c.TimeScope.SpecificPeriods)
	}
	c.ContextNeeded = clean(c.ContextNeeded)
	return &c
}

// clean drops empty and placeholder entries models put in lists.
func clean(items []string) []string {
	var out []string
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			continue
		}
		out = append(out, s)
	}
	return out
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
