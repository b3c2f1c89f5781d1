package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/common/logger"
)

type countingEmbedder struct {
	calls      int
	batchCalls int
	err        error
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int { return 2 }
func (e *countingEmbedder) Name() string    { return "test:model" }

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedEmbedder_LocalTier(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCachedEmbedder(inner, nil, time.Minute, 16, logger.NewTestLogger(t))

	first, err := cache.Embed(context.Background(), "total revenue")
	require.NoError(t, err)
	second, err := cache.Embed(context.Background(), "total revenue")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedder_RedisTierSurvivesNewProcess(t *testing.T) {
	mr, client := setupRedis(t)
	inner := &countingEmbedder{}

	first := NewCachedEmbedder(inner, client, time.Minute, 16, logger.NewTestLogger(t))
	vec, err := first.Embed(context.Background(), "profit by branch")
	require.NoError(t, err)

	key := CacheKey("test:model", "profit by branch")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// A fresh cache has an empty local tier but shares Redis.
	second := NewCachedEmbedder(inner, client, time.Minute, 16, logger.NewTestLogger(t))
	got, err := second.Embed(context.Background(), "profit by branch")
	require.NoError(t, err)

	assert.Equal(t, vec, got)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedder_MalformedRedisEntryIsRecomputed(t *testing.T) {
	mr, client := setupRedis(t)
	key := CacheKey("test:model", "q")
	require.NoError(t, mr.Set(key, "not-json"))

	inner := &countingEmbedder{}
	cache := NewCachedEmbedder(inner, client, time.Minute, 16, logger.NewTestLogger(t))

	vec, err := cache.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, vec)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedder_RedisErrorsAreNotFatal(t *testing.T) {
	db, mock := redismock.NewClientMock()
	key := CacheKey("test:model", "q")
	payload, err := encodeVector([]float32{1, 1})
	require.NoError(t, err)

	mock.ExpectGet(key).SetErr(errors.New("connection reset"))
	mock.ExpectSet(key, payload, time.Minute).SetErr(errors.New("connection reset"))

	inner := &countingEmbedder{}
	cache := NewCachedEmbedder(inner, db, time.Minute, 16, logger.NewTestLogger(t))

	vec, err := cache.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, vec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedEmbedder_RedisMissThenSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	key := CacheKey("test:model", "abc")
	payload, err := encodeVector([]float32{3, 1})
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, payload, time.Minute).SetVal("OK")

	cache := NewCachedEmbedder(&countingEmbedder{}, db, time.Minute, 16, logger.NewTestLogger(t))
	_, err = cache.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedEmbedder_BatchesBypassCache(t *testing.T) {
	mr, client := setupRedis(t)
	inner := &countingEmbedder{}
	cache := NewCachedEmbedder(inner, client, time.Minute, 16, logger.NewTestLogger(t))

	_, err := cache.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = cache.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.batchCalls)
	assert.Empty(t, mr.Keys())
}

func TestCachedEmbedder_PropagatesEmbedErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("quota")}
	cache := NewCachedEmbedder(inner, nil, time.Minute, 16, logger.NewTestLogger(t))

	_, err := cache.Embed(context.Background(), "q")
	assert.Error(t, err)

	// failures are not cached
	_, _ = cache.Embed(context.Background(), "q")
	assert.Equal(t, 2, inner.calls)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("m", "text")
	assert.Equal(t, a, CacheKey("m", "text"))
	assert.NotEqual(t, a, CacheKey("other", "text"))
	assert.Contains(t, a, "kb:embed:m:")
}

func TestGeminiEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.25,0.5,0.75]}]}`))
	}))
	defer server.Close()

	e, err := NewGeminiEmbedder(context.Background(), "key", server.URL, "gemini-embedding-001", 3, server.Client())
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5, 0.75}, vec)
	assert.Equal(t, 3, e.Dimensions())
	assert.Equal(t, "genai:gemini-embedding-001", e.Name())
}

func TestNewGeminiEmbedder_RequiresKey(t *testing.T) {
	_, err := NewGeminiEmbedder(context.Background(), "", "", "", 0, nil)
	assert.Error(t, err)
}
