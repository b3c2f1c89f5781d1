package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
dataset:
  path: configs/data/sales.csv
knowledge:
  backend: memory
  seed_path: configs/knowledge_base.json
database:
  redis:
    address: localhost:6379
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.APIs.GenAI.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.APIs.GenAI.Model)
	assert.InDelta(t, 0.3, cfg.APIs.GenAI.Temperature, 1e-9)
	assert.Equal(t, 8000, cfg.APIs.GenAI.MaxTokens)
	assert.Equal(t, "gemini-embedding-001", cfg.APIs.GenAI.EmbeddingModel)
	assert.Equal(t, 768, cfg.APIs.GenAI.EmbeddingDimensions)
	assert.Equal(t, 5, cfg.Knowledge.TopK)
	assert.Equal(t, 4000, cfg.Synthesis.ContextBudget)
	assert.Equal(t, 500, cfg.Analysis.RetryContextChars)
	assert.Equal(t, 1000, cfg.Dataset.PreviewLimit)
	assert.Equal(t, "Date", cfg.Dataset.DateColumn)
	assert.Equal(t, []string{"Year", "Quarter", "Month"}, cfg.Dataset.CalendarColumns)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 1e-9)

	for _, taskType := range knownTaskTypes {
		w := GetWorkerConfig(cfg, taskType)
		assert.True(t, w.Enabled, taskType)
		assert.Equal(t, 5, w.MaxJobsActive)
		assert.Equal(t, 120000, w.Timeout)
	}
}

func TestLoadFromFile_ExpandsEnvAndOverridesSecrets(t *testing.T) {
	t.Setenv("SALES_CSV", "/data/sales.csv")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := LoadFromFile(writeConfig(t, `
dataset:
  path: ${SALES_CSV}
knowledge:
  backend: memory
  seed_path: kb.json
database:
  redis:
    address: localhost:6379
workers:
  generate-analysis:
    enabled: false
`))
	require.NoError(t, err)

	assert.Equal(t, "/data/sales.csv", cfg.Dataset.Path)
	assert.Equal(t, "gem-key", cfg.APIs.GenAI.APIKey)
	assert.False(t, IsWorkerEnabled(cfg, TaskGenerateAnalysis))
	assert.True(t, IsWorkerEnabled(cfg, TaskClassifyQuery))
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing dataset path",
			body: "knowledge:\n  backend: memory\n  seed_path: kb.json\ndatabase:\n  redis:\n    address: x:1\n",
			want: "dataset.path",
		},
		{
			name: "postgres without table",
			body: "dataset:\n  source: postgres\nknowledge:\n  backend: memory\n  seed_path: kb.json\ndatabase:\n  redis:\n    address: x:1\n",
			want: "dataset.table",
		},
		{
			name: "elasticsearch without address",
			body: "dataset:\n  path: a.csv\ndatabase:\n  redis:\n    address: x:1\n",
			want: "database.elasticsearch",
		},
		{
			name: "missing redis",
			body: "dataset:\n  path: a.csv\nknowledge:\n  backend: memory\n  seed_path: kb.json\n",
			want: "database.redis.address",
		},
		{
			name: "unknown provider",
			body: minimalConfig + "apis:\n  genai:\n    provider: openai\n",
			want: "apis.genai.provider",
		},
		{
			name: "unknown tracing exporter",
			body: minimalConfig + "tracing:\n  exporter: jaeger\n",
			want: "tracing.exporter",
		},
		{
			name: "sample ratio out of range",
			body: minimalConfig + "tracing:\n  exporter: stdout\n  sample_ratio: 2\n",
			want: "tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile_OTLPEndpointDefault(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+"tracing:\n  exporter: otlp\n"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:4318", cfg.Tracing.Endpoint)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestElasticsearchConfig_GetAddresses(t *testing.T) {
	assert.Equal(t, []string{"http://a:9200"}, ElasticsearchConfig{URL: "http://a:9200"}.GetAddresses())
	assert.Equal(t, []string{"http://b:9200"}, ElasticsearchConfig{Addresses: []string{"http://b:9200"}}.GetAddresses())
	assert.Nil(t, ElasticsearchConfig{}.GetAddresses())
}
