package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/database"
	"sales-insight-workers/internal/common/llm/llmtest"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/dataset"
	"sales-insight-workers/internal/knowledge"
	"sales-insight-workers/internal/models"
)

func fastConnect(t *testing.T) {
	tries, delay := ConnectMaxTries, ConnectBaseDelay
	ConnectMaxTries, ConnectBaseDelay = 3, time.Millisecond
	t.Cleanup(func() { ConnectMaxTries, ConnectBaseDelay = tries, delay })
}

func TestConnect_RetriesUntilSuccess(t *testing.T) {
	fastConnect(t)
	calls := 0
	got, err := Connect(context.Background(), "test dependency", zaptest.NewLogger(t), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestConnect_GivesUp(t *testing.T) {
	fastConnect(t)
	calls := 0
	_, err := Connect(context.Background(), "test dependency", zaptest.NewLogger(t), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test dependency failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestConnect_StopsOnPermanentError(t *testing.T) {
	fastConnect(t)
	calls := 0
	_, err := Connect(context.Background(), "test dependency", zaptest.NewLogger(t), func(ctx context.Context) (int, error) {
		calls++
		return 0, backoff.Permanent(errors.New("bad dsn"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

type flatEmbedder struct{}

func (flatEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (flatEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (flatEmbedder) Dimensions() int { return 2 }
func (flatEmbedder) Name() string    { return "test:flat" }

func testConfig() *config.Config {
	return &config.Config{
		Workers: map[string]config.WorkerConfig{
			config.TaskGenerateAnalysis: {Enabled: true, Timeout: 1500},
		},
		Knowledge: config.KnowledgeConfig{TopK: 4},
		Analysis:  config.AnalysisConfig{RetryContextChars: 200, MaxStatements: 32},
		Synthesis: config.SynthesisConfig{ContextBudget: 1000, CurrencySymbol: "৳", Organization: "Akij Group"},
	}
}

func TestBuildHandlers_WiresTheOrchestrator(t *testing.T) {
	frame := dataset.MustFrame(
		dataset.NewColumn("Division_Name", []any{"Cement", "FMCG"}),
		dataset.NewColumn("Net_Amount_BDT", []any{100.0, 50.0}),
	)
	data := dataset.NewAccessor(frame, dataset.Options{DivisionColumn: "Division_Name"})

	store := knowledge.NewMemoryStore(flatEmbedder{})
	require.NoError(t, store.Index(context.Background(), []knowledge.Document{
		{ID: "s1", Type: models.DocTypeSchema, Content: "Net_Amount_BDT is revenue"},
		{ID: "p1", Type: models.DocTypeProducts, Content: "Cement is sold in 50kg bags"},
	}))

	gw := llmtest.New().
		On("You are a query analysis expert", `{"is_greeting":"no","is_data_query":"yes","requires_data_access":"yes","question_type":"descriptive"}`).
		On("Available context types:", `{"context_types": ["schema"]}`).
		On("expert analysis code generator", "```python\nresult = df['Net_Amount_BDT'].sum()\n```").
		On("RETRIEVED DATA FROM CSV:", "Total revenue was ৳150.")

	h := buildHandlers(testConfig(), gw, store, data, nil, logger.NewTestLogger(t))

	resp := h.Answer.Answer(context.Background(), "req-1", "Total revenue?")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "Total revenue was ৳150.", resp.Answer)
	assert.Equal(t, []string{"Net_Amount_BDT is revenue", "Cement is sold in 50kg bags"}, resp.Context)
	assert.Equal(t, 4, gw.Calls())
}

func TestWorkerTimeout(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 1500*time.Millisecond, workerTimeout(cfg, config.TaskGenerateAnalysis, time.Minute))
	assert.Equal(t, time.Minute, workerTimeout(cfg, config.TaskClassifyQuery, time.Minute))
}

func TestApp_Ready(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	a := &App{Redis: rdb}
	ready := a.Ready(context.Background())
	assert.NoError(t, ready["redis"])
	assert.Error(t, ready["dataset"])
	assert.NotContains(t, ready, "postgres")

	a.Dataset = dataset.NewAccessor(dataset.MustFrame(dataset.NewColumn("Year", []any{2024.0})), dataset.Options{})
	mr.Close()
	ready = a.Ready(context.Background())
	assert.Error(t, ready["redis"])
	assert.NoError(t, ready["dataset"])
}

func TestApp_CloseRunsInReverse(t *testing.T) {
	var order []int
	a := &App{log: zaptest.NewLogger(t)}
	a.closer = append(a.closer,
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return errors.New("already closed") },
	)
	a.Close()
	a.Close()
	assert.Equal(t, []int{2, 1}, order)
}
