// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	APIs      APIsConfig              `mapstructure:"apis"`
	Dataset   DatasetConfig           `mapstructure:"dataset"`
	Knowledge KnowledgeConfig         `mapstructure:"knowledge"`
	Analysis  AnalysisConfig          `mapstructure:"analysis"`
	Synthesis SynthesisConfig         `mapstructure:"synthesis"`
	Server    ServerConfig            `mapstructure:"server"`
	Registry  RegistryConfig          `mapstructure:"registry"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Tracing   TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	ProcessID      string `mapstructure:"process_id"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// GetAddresses returns the configured addresses, falling back to URL.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// APIsConfig holds settings for the hosted model providers.
type APIsConfig struct {
	GenAI     GenAIConfig     `mapstructure:"genai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// GenAIConfig configures text generation and embeddings. Provider selects
// which backend serves text generation; embeddings always use Gemini.
type GenAIConfig struct {
	Provider            string  `mapstructure:"provider"` // gemini | anthropic
	Model               string  `mapstructure:"model"`
	APIKey              string  `mapstructure:"api_key"`
	BaseURL             string  `mapstructure:"base_url"`
	Timeout             int     `mapstructure:"timeout"` // milliseconds
	Temperature         float64 `mapstructure:"temperature"`
	MaxTokens           int     `mapstructure:"max_tokens"`
	EmbeddingModel      string  `mapstructure:"embedding_model"`
	EmbeddingDimensions int     `mapstructure:"embedding_dimensions"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// DatasetConfig describes where the sales table is loaded from.
type DatasetConfig struct {
	Source          string   `mapstructure:"source"` // csv | postgres
	Path            string   `mapstructure:"path"`
	Table           string   `mapstructure:"table"`
	DateColumn      string   `mapstructure:"date_column"`
	CalendarColumns []string `mapstructure:"calendar_columns"`
	PreviewLimit    int      `mapstructure:"preview_limit"`
	Summary         struct {
		RevenueColumn  string `mapstructure:"revenue_column"`
		ProfitColumn   string `mapstructure:"profit_column"`
		MarginColumn   string `mapstructure:"margin_column"`
		DivisionColumn string `mapstructure:"division_column"`
		BranchColumn   string `mapstructure:"branch_column"`
	} `mapstructure:"summary"`
}

// KnowledgeConfig configures the embedding index.
type KnowledgeConfig struct {
	Backend   string `mapstructure:"backend"` // elasticsearch | memory
	Index     string `mapstructure:"index"`
	SeedPath  string `mapstructure:"seed_path"`
	TopK      int    `mapstructure:"top_k"`
	CacheTTL  int    `mapstructure:"cache_ttl"` // milliseconds
	CacheSize int    `mapstructure:"cache_size"`
}

type AnalysisConfig struct {
	RetryContextChars int `mapstructure:"retry_context_chars"`
	MaxStatements     int `mapstructure:"max_statements"`
}

type SynthesisConfig struct {
	ContextBudget  int      `mapstructure:"context_budget"`
	CurrencySymbol string   `mapstructure:"currency_symbol"`
	Organization   string   `mapstructure:"organization"`
	Divisions      []string `mapstructure:"divisions"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// TracingConfig selects where pipeline spans are exported: none, stdout or
// otlp (OTLP over HTTP to Endpoint).
type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
