// internal/workers/analytics/answer-question/handler.go
package answerquestion

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "sales-insight-workers/internal/common/errors"
	"sales-insight-workers/internal/common/llm"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/metrics"
	"sales-insight-workers/internal/common/observability"
	"sales-insight-workers/internal/models"
	classifyquery "sales-insight-workers/internal/workers/analytics/classify-query"
	generateanalysis "sales-insight-workers/internal/workers/analytics/generate-analysis"
	retrievecontext "sales-insight-workers/internal/workers/analytics/retrieve-context"
	synthesizeanswer "sales-insight-workers/internal/workers/analytics/synthesize-answer"
)

const (
	TaskType = "answer-question"
)

type Classifier interface {
	Execute(ctx context.Context, input *classifyquery.Input) (*classifyquery.Output, error)
}

type Retriever interface {
	Execute(ctx context.Context, input *retrievecontext.Input) (*retrievecontext.Output, error)
}

type Analyzer interface {
	Execute(ctx context.Context, input *generateanalysis.Input) (*generateanalysis.Output, error)
}

type Synthesizer interface {
	Execute(ctx context.Context, input *synthesizeanswer.Input) (*synthesizeanswer.Output, error)
}

// Stages are the pipeline steps, usually the other analytics workers'
// handlers.
type Stages struct {
	Classifier  Classifier
	Retriever   Retriever
	Analyzer    Analyzer
	Synthesizer Synthesizer
}

type Handler struct {
	config       *Config
	stages       Stages
	gateway      llm.Gateway
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, stages Stages, gateway llm.Gateway, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	if obs == nil {
		obs = observability.Noop()
	}
	return &Handler{
		config:       config,
		stages:       stages,
		gateway:      gateway,
		obs:          obs,
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

// Execute answers one question. Only a missing question is an error; every
// pipeline failure is reported inside the response.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, apperrors.NewInvalidInputError("question is required")
	}
	return &Output{Response: h.Answer(ctx, input.RequestID, input.Question)}, nil
}

// Answer runs classify, retrieve, analyze and synthesize in order. Greetings
// and questions that need no data are answered conversationally after the
// classifier. An empty requestID is replaced with a new UUID.
func (h *Handler) Answer(ctx context.Context, requestID, question string) (resp *models.AnswerResponse) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	start := time.Now()
	route := RouteAnalytics

	ctx, span := h.obs.StartSpan(ctx, "pipeline.answer", attribute.String("request.id", requestID))
	defer span.End()

	log := h.logger.With(map[string]interface{}{"requestId": requestID})

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			resp = models.NewErrorResponse(requestID, fmt.Sprintf("Processing error: %v", r))
		}
		if !resp.Success && resp.QueryType == models.ErrorQueryType {
			route = RouteError
			span.SetStatus(codes.Error, resp.Error)
		}
		span.SetAttributes(attribute.String("pipeline.route", route))
		metrics.PipelineRequests.WithLabelValues(route).Inc()
		h.obs.RecordRequest(ctx, route, time.Since(start))
		log.Info("question answered", map[string]interface{}{
			"route":      route,
			"success":    resp.Success,
			"durationMs": time.Since(start).Milliseconds(),
		})
	}()

	fail := func(stage string, err error) *models.AnswerResponse {
		log.Error("pipeline stage failed", map[string]interface{}{
			"stage": stage,
			"error": err.Error(),
		})
		return models.NewErrorResponse(requestID, "Processing error: "+err.Error())
	}

	stageCtx, stageSpan := h.obs.StartSpan(ctx, "pipeline.classify")
	classified, err := h.stages.Classifier.Execute(stageCtx, &classifyquery.Input{RequestID: requestID, Question: question})
	endStage(stageSpan, err)
	if err != nil {
		return fail("classify", err)
	}

	c := classified.Classification
	if classified.Route == classifyquery.RouteConversational || c.IsConversational() {
		route = RouteConversational
		return h.converse(ctx, requestID, question)
	}

	stageCtx, stageSpan = h.obs.StartSpan(ctx, "pipeline.retrieve")
	retrieved, err := h.stages.Retriever.Execute(stageCtx, &retrievecontext.Input{
		RequestID:      requestID,
		Question:       question,
		Classification: c,
	})
	endStage(stageSpan, err)
	knowledge := &models.RetrievedContext{Text: models.UnavailableContext}
	if err != nil {
		log.Warn("context retrieval failed, continuing without business context", map[string]interface{}{
			"error": err.Error(),
		})
	} else if retrieved.Context != nil {
		knowledge = retrieved.Context
	}

	stageCtx, stageSpan = h.obs.StartSpan(ctx, "pipeline.analyze")
	analyzed, err := h.stages.Analyzer.Execute(stageCtx, &generateanalysis.Input{
		RequestID:      requestID,
		Question:       question,
		Classification: c,
		Context:        knowledge,
	})
	endStage(stageSpan, err)
	if err != nil {
		return fail("analyze", err)
	}
	outcome := analyzed.Analysis
	if outcome == nil {
		outcome = &models.AnalysisOutcome{Error: "analysis produced no outcome"}
	}
	if !outcome.Success {
		log.Warn("data retrieval had issues, synthesizing anyway", map[string]interface{}{
			"error": outcome.Error,
		})
	}

	stageCtx, stageSpan = h.obs.StartSpan(ctx, "pipeline.synthesize")
	synthesized, err := h.stages.Synthesizer.Execute(stageCtx, &synthesizeanswer.Input{
		RequestID:      requestID,
		Question:       question,
		Classification: c,
		Analysis:       outcome,
		Context:        knowledge,
	})
	endStage(stageSpan, err)
	if err != nil {
		return fail("synthesize", err)
	}

	passages := knowledge.Passages()
	if passages == nil {
		passages = []string{}
	}
	return &models.AnswerResponse{
		RequestID: requestID,
		Success:   outcome.Success,
		Answer:    synthesized.Answer,
		Data:      outcome.Data,
		Context:   passages,
		Agent:     synthesized.Agent,
		QueryType: synthesized.QueryType,
		Error:     outcome.Error,
		Code:      outcome.Code,
	}
}

func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (h *Handler) converse(ctx context.Context, requestID, question string) *models.AnswerResponse {
	ctx, span := h.obs.StartSpan(ctx, "pipeline.converse")
	defer span.End()

	answer := h.gateway.Generate(ctx, buildConversationalPrompt(question, h.config.Organization, h.config.Divisions))
	return &models.AnswerResponse{
		RequestID:            requestID,
		Success:              true,
		Answer:               answer,
		Context:              []string{},
		Agent:                models.ConversationalAgent,
		QueryType:            models.ConversationalQueryType,
		SkippedDataRetrieval: true,
	}
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
