// Package app builds the process-wide dependencies once: infrastructure
// clients, the dataset, the model gateway, the knowledge store and the
// analytics handlers wired into the orchestrator.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/database"
	"sales-insight-workers/internal/common/embedding"
	apphttp "sales-insight-workers/internal/common/http"
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

// Handlers are the five analytics task handlers.
type Handlers struct {
	Classify   *classifyquery.Handler
	Retrieve   *retrievecontext.Handler
	Generate   *generateanalysis.Handler
	Synthesize *synthesizeanswer.Handler
	Answer     *answerquestion.Handler
}

type App struct {
	Config   *config.Config
	Dataset  *dataset.Accessor
	Gateway  llm.Gateway
	Embedder *embedding.CachedEmbedder
	Store    knowledge.Store
	Handlers Handlers

	Postgres      *database.PostgresClient
	Elasticsearch *database.ElasticsearchClient
	Redis         *database.RedisClient

	log    *zap.Logger
	closer []func() error
}

// Retry tuning for infrastructure start-up.
var (
	ConnectMaxTries   uint = 10
	ConnectBaseDelay       = 2 * time.Second
	ConnectMaxElapsed      = 2 * time.Minute
)

// Connect runs open with exponential backoff until it succeeds or the retry
// budget is spent.
func Connect[T any](ctx context.Context, name string, log *zap.Logger, open func(context.Context) (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = ConnectBaseDelay

	attempt := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		return open(ctx)
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(ConnectMaxTries),
		backoff.WithMaxElapsedTime(ConnectMaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn(fmt.Sprintf("%s failed, retrying...", name),
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("nextRetryIn", next),
			)
		}),
	)
	if err != nil {
		return result, fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
	}
	log.Info(name + " connected successfully")
	return result, nil
}

// Build connects to the configured infrastructure and constructs every
// handler. Close releases what Build opened.
func Build(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, obs *observability.Observability) (*App, error) {
	a := &App{Config: cfg, log: zapLog}
	log := logger.NewZapAdapter(zapLog)

	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	frame, err := dataset.Load(ctx, cfg.Dataset, a.postgresDB())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	a.Dataset = dataset.NewAccessor(frame, dataset.OptionsFromConfig(cfg.Dataset))
	zapLog.Info("dataset loaded",
		zap.String("source", cfg.Dataset.Source),
		zap.Int("rows", a.Dataset.Len()),
		zap.Int("columns", frame.Width()),
	)

	httpClient := apphttp.NewClient(config.GetDuration(cfg.APIs.GenAI.Timeout)).Standard()

	gateway, err := llm.NewGateway(ctx, cfg.APIs, httpClient, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create llm gateway: %w", err)
	}
	a.Gateway = gateway

	if err := a.buildKnowledge(ctx, httpClient, log); err != nil {
		a.Close()
		return nil, err
	}

	a.Handlers = buildHandlers(cfg, a.Gateway, a.Store, a.Dataset, obs, log)
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	if cfg.Dataset.Source == "postgres" {
		pg, err := Connect(ctx, "PostgreSQL connection", a.log, func(ctx context.Context) (*database.PostgresClient, error) {
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return nil, err
			}
			return pg, nil
		})
		if err != nil {
			return err
		}
		a.Postgres = pg
		a.closer = append(a.closer, pg.Close)
	}

	if cfg.Knowledge.Backend == "elasticsearch" {
		es, err := Connect(ctx, "Elasticsearch connection", a.log, func(ctx context.Context) (*database.ElasticsearchClient, error) {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return es, es.Ping(ctx)
		})
		if err != nil {
			return err
		}
		a.Elasticsearch = es
	}

	rdb, err := Connect(ctx, "Redis connection", a.log, func(ctx context.Context) (*database.RedisClient, error) {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := rdb.Ping(ctx); err != nil {
			rdb.Close()
			return nil, err
		}
		return rdb, nil
	})
	if err != nil {
		return err
	}
	a.Redis = rdb
	a.closer = append(a.closer, rdb.Close)
	return nil
}

func (a *App) postgresDB() *sql.DB {
	if a.Postgres == nil {
		return nil
	}
	return a.Postgres.DB
}

func (a *App) redisClient() redis.Cmdable {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Cmdable()
}
