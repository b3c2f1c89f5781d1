// internal/workers/analytics/generate-analysis/handler.go
package generateanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"sales-insight-workers/internal/analysis"
	apperrors "sales-insight-workers/internal/common/errors"
	"sales-insight-workers/internal/common/llm"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/metrics"
	"sales-insight-workers/internal/dataset"
	"sales-insight-workers/internal/models"
)

const (
	TaskType = "generate-analysis"
)

// Dataset is the read side of the dataset accessor used by the engine.
type Dataset interface {
	Frame() *dataset.Frame
	Describe() string
	Len() int
}

type Handler struct {
	config       *Config
	gateway      llm.Gateway
	dataset      Dataset
	interpreter  *analysis.Interpreter
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, gateway llm.Gateway, data Dataset, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		gateway:      gateway,
		dataset:      data,
		interpreter:  analysis.NewInterpreter(),
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

// Execute generates analysis code for the question, validates it (with one
// simplified retry), runs it against a fresh copy of the dataset and
// normalizes the value bound to result. Generation, validation and runtime
// failures are reported in the outcome, not as errors.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, apperrors.NewInvalidInputError("question is required")
	}
	if h.dataset == nil || h.dataset.Len() == 0 {
		return &Output{Analysis: failure(apperrors.NewDatasetUnavailableError("DataFrame is empty or not available"), "", "")}, nil
	}

	var contextText string
	if input.Context != nil && input.Context.Success {
		contextText = input.Context.Text
	}

	outcome := h.Analyze(ctx, input.Question, input.Classification, contextText)

	fields := map[string]interface{}{
		"requestId": input.RequestID,
		"attempts":  outcome.Attempts,
	}
	if outcome.Success {
		fields["resultKind"] = string(outcome.Result().Kind())
		h.logger.Info("analysis completed", fields)
	} else {
		fields["errorCode"] = outcome.ErrorCode
		fields["error"] = outcome.Error
		h.logger.Warn("analysis failed", fields)
	}
	return &Output{Analysis: outcome}, nil
}

// Analyze runs the generate, validate, execute and normalize sequence.
func (h *Handler) Analyze(ctx context.Context, question string, c *models.Classification, contextText string) *models.AnalysisOutcome {
	schema := h.dataset.Describe()

	prog, code, attempts, stdErr := h.generate(ctx, question, c, schema, contextText)
	if stdErr != nil {
		kind := "ValidationError"
		if stdErr.Code == apperrors.ErrCodeCodeGenerationFailed {
			kind = "GenerationError"
		}
		outcome := failure(stdErr, kind, code)
		outcome.Attempts = attempts
		return outcome
	}

	res, err := h.interpreter.Run(ctx, prog, analysis.Bind(h.dataset.Frame()))
	if err != nil {
		outcome := executionFailure(err, code)
		outcome.Attempts = attempts
		return outcome
	}

	metrics.AnalysisResults.WithLabelValues(string(res.Kind())).Inc()
	return &models.AnalysisOutcome{
		Success:  true,
		Data:     &analysis.Envelope{Result: res},
		Code:     code,
		Attempts: attempts,
	}
}

// generate makes at most two model calls. The second uses a shorter prompt
// and only happens when the first artifact is rejected. A first response
// with no code in it fails without a retry.
func (h *Handler) generate(ctx context.Context, question string, c *models.Classification, schema, contextText string) (*analysis.Program, string, int, *apperrors.StandardError) {
	prog, code, first, noCode := h.attempt(ctx, 1, buildPrompt(question, c, schema, contextText))
	if noCode {
		return nil, code, 1, apperrors.NewCodeGenerationFailedError(errors.New(first))
	}
	if first == "" {
		return prog, code, 1, nil
	}

	h.logger.Warn("generated code rejected, retrying with simplified prompt", map[string]interface{}{
		"reason": first,
	})

	prog, code, second, _ := h.attempt(ctx, 2, buildRetryPrompt(question, schema, contextText, h.config.RetryContextChars))
	if second == "" {
		return prog, code, 2, nil
	}

	msg := fmt.Sprintf("Code validation failed: %s. Retry also failed: %s", first, second)
	return nil, code, 2, apperrors.NewCodeValidationFailedError(msg)
}

// attempt returns the rejection reason, or "" when the code is runnable.
// noCode reports a model failure or a response with nothing to extract.
func (h *Handler) attempt(ctx context.Context, n int, prompt string) (prog *analysis.Program, code, reason string, noCode bool) {
	label := strconv.Itoa(n)
	response := h.gateway.Generate(ctx, prompt)
	if llm.IsFailureText(response) {
		metrics.AnalysisGenerationAttempts.WithLabelValues(label, "llm_error").Inc()
		return nil, "", "Failed to generate analysis code: " + response, true
	}

	code = analysis.Extract(response)
	if strings.TrimSpace(code) == "" {
		metrics.AnalysisGenerationAttempts.WithLabelValues(label, "empty").Inc()
		return nil, "", "Failed to generate analysis code", true
	}
	prog, err := analysis.Validate(code, h.config.MaxStatements)
	if err != nil {
		metrics.AnalysisGenerationAttempts.WithLabelValues(label, "rejected").Inc()
		return nil, code, err.Error(), false
	}
	metrics.AnalysisGenerationAttempts.WithLabelValues(label, "accepted").Inc()
	return prog, code, "", false
}

func failure(stdErr *apperrors.StandardError, kind, code string) *models.AnalysisOutcome {
	msg := stdErr.Details
	if msg == "" {
		msg = stdErr.Message
	}
	return &models.AnalysisOutcome{
		Success:   false,
		Error:     msg,
		ErrorCode: string(stdErr.Code),
		ErrorKind: kind,
		Code:      code,
	}
}

func executionFailure(err error, code string) *models.AnalysisOutcome {
	if errors.Is(err, analysis.ErrNoResult) {
		return failure(apperrors.NewNoResultAssignedError(), "NoResult", code)
	}

	var execErr *analysis.ExecutionError
	if errors.As(err, &execErr) {
		outcome := failure(apperrors.NewCodeExecutionFailedError(execErr.Error()), execErr.Kind, code)
		outcome.Traceback = execErr.Trace
		return outcome
	}

	// context cancellation or deadline
	return failure(apperrors.NewCodeExecutionFailedError(err.Error()), "Cancelled", code)
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
