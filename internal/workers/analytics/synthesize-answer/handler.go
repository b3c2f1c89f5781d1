// internal/workers/analytics/synthesize-answer/handler.go
package synthesizeanswer

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
)

const (
	TaskType = "synthesize-answer"
)

// EmptyAnswer replaces a blank completion.
const EmptyAnswer = "I was unable to generate a proper response. The LLM returned an empty answer. Please try a simpler query."

type Handler struct {
	config       *Config
	gateway      llm.Gateway
	formatter    *Formatter
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
		formatter:    NewFormatter(config.CurrencySymbol, config.MaxRows),
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

// Execute writes the answer with one model call. The persona and template
// follow the question type; a failed analysis is still described to the
// model so the answer can explain what went wrong.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, apperrors.NewInvalidInputError("question is required")
	}

	qt := input.Classification.Type()
	data := h.formatter.Format(input.Analysis)

	var raw string
	if input.Context != nil {
		raw = input.Context.Text
	}
	business := truncateContext(raw, h.config.ContextBudget)

	prompt := buildPrompt(input.Question, qt, data, business, h.config.CurrencySymbol)
	answer := h.gateway.Generate(ctx, prompt)

	fields := map[string]interface{}{
		"requestId":    input.RequestID,
		"questionType": string(qt),
		"promptChars":  len(prompt),
		"answerChars":  len(answer),
	}
	if strings.TrimSpace(answer) == "" || answer == llm.EmptyResponseText {
		h.logger.Warn("model returned an empty answer", fields)
		answer = EmptyAnswer
	} else {
		h.logger.Info("answer synthesized", fields)
	}

	return &Output{
		Answer:    answer,
		Agent:     qt.Agent(),
		QueryType: qt.Analytics(),
	}, nil
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
