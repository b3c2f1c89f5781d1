// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sales-insight-workers/internal/app"
	"sales-insight-workers/internal/common/camunda"
	"sales-insight-workers/internal/common/config"
	apperrors "sales-insight-workers/internal/common/errors"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/observability"
	"sales-insight-workers/internal/common/validation"
	"sales-insight-workers/pkg/registry"
)

func main() {
	bootLog := logger.New("info", "console")
	bootLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewFromConfig(cfg.Logging)
	defer zapLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(ctx, cfg.App.Name, cfg.Tracing)
	defer obs.Shutdown()

	// --- Zeebe ---
	zeebe, err := app.Connect(ctx, "Zeebe client initialization", zapLog, func(ctx context.Context) (*camunda.Client, error) {
		return camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}

	// --- Dataset, model gateway, knowledge store, handlers ---
	deps, err := app.Build(ctx, cfg, zapLog, obs)
	if err != nil {
		zapLog.Fatal("dependency initialization failed", zap.Error(err))
	}
	defer deps.Close()

	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Warn("activity registry unavailable, using configured worker settings only",
			zap.String("path", cfg.Registry.Path), zap.Error(err))
		reg = nil
	}

	// --- Workers ---
	errorHandler := apperrors.NewErrorHandler(logger.NewZapAdapter(zapLog))
	handlers := map[string]camunda.JobHandler{
		config.TaskClassifyQuery:    deps.Handlers.Classify,
		config.TaskRetrieveContext:  deps.Handlers.Retrieve,
		config.TaskGenerateAnalysis: deps.Handlers.Generate,
		config.TaskSynthesizeAnswer: deps.Handlers.Synthesize,
		config.TaskAnswerQuestion:   deps.Handlers.Answer,
	}

	var workers []*camunda.CamundaWorker
	for _, taskType := range []string{
		config.TaskClassifyQuery,
		config.TaskRetrieveContext,
		config.TaskGenerateAnalysis,
		config.TaskSynthesizeAnswer,
		config.TaskAnswerQuestion,
	} {
		wcfg := workerSettings(cfg, reg, taskType, zapLog)
		handler := handlers[taskType]
		if schema := inputSchema(reg, taskType, zapLog); schema != nil {
			handler = camunda.HandlerFunc(camunda.ValidateInput(schema, errorHandler, handler.Handle))
		}
		if w := camunda.NewWorker(zeebe.GetClient(), taskType, wcfg, handler, zapLog); w != nil {
			workers = append(workers, w)
		}
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := newServerMux(deps.Dataset.Summary, func(ctx context.Context) map[string]error {
		checks := deps.Ready(ctx)
		checks["zeebe"] = zeebe.HealthCheck(ctx)
		return checks
	})
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// workerSettings merges the configured worker section with the registry:
// the registry timeout is a floor for the job activation timeout.
func workerSettings(cfg *config.Config, reg *registry.ActivityRegistry, taskType string, log *zap.Logger) config.WorkerConfig {
	wcfg := config.GetWorkerConfig(cfg, taskType)
	activity := reg.Find(taskType)
	if activity == nil {
		return wcfg
	}
	d, err := activity.TimeoutDuration()
	if err != nil {
		log.Warn("ignoring registry timeout", zap.String("taskType", taskType), zap.Error(err))
		return wcfg
	}
	if ms := int(d.Milliseconds()); ms > wcfg.Timeout {
		wcfg.Timeout = ms
	}
	return wcfg
}

// inputSchema compiles the registry input schema for taskType, or returns
// nil when there is none.
func inputSchema(reg *registry.ActivityRegistry, taskType string, log *zap.Logger) *validation.Validator {
	activity := reg.Find(taskType)
	if activity == nil || len(activity.InputSchema) == 0 {
		return nil
	}
	v, err := validation.NewValidator(activity.InputSchema)
	if err != nil {
		log.Warn("ignoring invalid registry input schema", zap.String("taskType", taskType), zap.Error(err))
		return nil
	}
	return v
}
