package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/embedding"
	"sales-insight-workers/internal/common/llm"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/observability"
	"sales-insight-workers/internal/dataset"
	"sales-insight-workers/internal/knowledge"
	answerquestion "sales-insight-workers/internal/workers/analytics/answer-question"
	classifyquery "sales-insight-workers/internal/workers/analytics/classify-query"
	generateanalysis "sales-insight-workers/internal/workers/analytics/generate-analysis"
	retrievecontext "sales-insight-workers/internal/workers/analytics/retrieve-context"
	synthesizeanswer "sales-insight-workers/internal/workers/analytics/synthesize-answer"
)

func (a *App) buildKnowledge(ctx context.Context, httpClient *http.Client, log logger.Logger) error {
	cfg := a.Config

	gemini, err := embedding.NewGeminiEmbedder(ctx,
		cfg.APIs.GenAI.APIKey,
		cfg.APIs.GenAI.BaseURL,
		cfg.APIs.GenAI.EmbeddingModel,
		cfg.APIs.GenAI.EmbeddingDimensions,
		httpClient,
	)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	a.Embedder = embedding.NewCachedEmbedder(gemini, a.redisClient(),
		config.GetDuration(cfg.Knowledge.CacheTTL), cfg.Knowledge.CacheSize, log)
	a.Embedder.Start()
	a.closer = append(a.closer, func() error {
		a.Embedder.Stop()
		return nil
	})

	switch cfg.Knowledge.Backend {
	case "elasticsearch":
		store := knowledge.NewElasticsearchStore(a.Elasticsearch.Client, cfg.Knowledge.Index, a.Embedder)
		created, err := store.EnsureIndex(ctx)
		if err != nil {
			return err
		}
		if created && cfg.Knowledge.SeedPath != "" {
			if err := a.seed(ctx, store); err != nil {
				return err
			}
		}
		a.Store = store
	case "memory":
		store := knowledge.NewMemoryStore(a.Embedder)
		if err := a.seed(ctx, store); err != nil {
			return err
		}
		a.Store = store
	default:
		return fmt.Errorf("unknown knowledge backend %q", cfg.Knowledge.Backend)
	}
	return nil
}

func (a *App) seed(ctx context.Context, idx knowledge.Indexer) error {
	docs, err := knowledge.LoadDocuments(a.Config.Knowledge.SeedPath)
	if err != nil {
		return err
	}
	if err := idx.Index(ctx, docs); err != nil {
		return fmt.Errorf("index knowledge base: %w", err)
	}
	a.log.Info("knowledge base indexed",
		zap.String("backend", a.Config.Knowledge.Backend),
		zap.Int("documents", len(docs)),
	)
	return nil
}

func buildHandlers(
	cfg *config.Config,
	gateway llm.Gateway,
	store knowledge.Store,
	data *dataset.Accessor,
	obs *observability.Observability,
	log logger.Logger,
) Handlers {
	classifyCfg := classifyquery.LoadConfig()
	classifyCfg.Timeout = workerTimeout(cfg, classifyquery.TaskType, classifyCfg.Timeout)

	retrieveCfg := retrievecontext.LoadConfig()
	retrieveCfg.Timeout = workerTimeout(cfg, retrievecontext.TaskType, retrieveCfg.Timeout)
	if cfg.Knowledge.TopK > 0 {
		retrieveCfg.PrimaryK = cfg.Knowledge.TopK
	}

	generateCfg := generateanalysis.LoadConfig()
	generateCfg.Timeout = workerTimeout(cfg, generateanalysis.TaskType, generateCfg.Timeout)
	generateCfg.RetryContextChars = cfg.Analysis.RetryContextChars
	generateCfg.MaxStatements = cfg.Analysis.MaxStatements

	synthesizeCfg := synthesizeanswer.LoadConfig()
	synthesizeCfg.Timeout = workerTimeout(cfg, synthesizeanswer.TaskType, synthesizeCfg.Timeout)
	synthesizeCfg.ContextBudget = cfg.Synthesis.ContextBudget
	synthesizeCfg.CurrencySymbol = cfg.Synthesis.CurrencySymbol

	answerCfg := answerquestion.LoadConfig()
	answerCfg.Timeout = workerTimeout(cfg, answerquestion.TaskType, answerCfg.Timeout)
	answerCfg.Organization = cfg.Synthesis.Organization
	answerCfg.Divisions = cfg.Synthesis.Divisions
	if len(answerCfg.Divisions) == 0 {
		answerCfg.Divisions = data.Summary().Divisions
	}

	h := Handlers{
		Classify:   classifyquery.NewHandler(classifyCfg, gateway, log),
		Retrieve:   retrievecontext.NewHandler(retrieveCfg, gateway, store, log),
		Generate:   generateanalysis.NewHandler(generateCfg, gateway, data, log),
		Synthesize: synthesizeanswer.NewHandler(synthesizeCfg, gateway, log),
	}
	h.Answer = answerquestion.NewHandler(answerCfg, answerquestion.Stages{
		Classifier:  h.Classify,
		Retriever:   h.Retrieve,
		Analyzer:    h.Generate,
		Synthesizer: h.Synthesize,
	}, gateway, obs, log)
	return h
}

// workerTimeout is the configured job timeout for taskType, or def.
func workerTimeout(cfg *config.Config, taskType string, def time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return def
}

// Ready pings every dependency Build connected to. The map is keyed by
// dependency name; a nil value means healthy.
func (a *App) Ready(ctx context.Context) map[string]error {
	out := map[string]error{}
	if a.Postgres != nil {
		out["postgres"] = a.Postgres.Ping(ctx)
	}
	if a.Elasticsearch != nil {
		out["elasticsearch"] = a.Elasticsearch.Ping(ctx)
	}
	if a.Redis != nil {
		out["redis"] = a.Redis.Ping(ctx)
	}
	if a.Dataset == nil || a.Dataset.Len() == 0 {
		out["dataset"] = fmt.Errorf("dataset is empty or not loaded")
	} else {
		out["dataset"] = nil
	}
	return out
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		if err := a.closer[i](); err != nil {
			a.log.Error("close failed", zap.Error(err))
		}
	}
	a.closer = nil
}
