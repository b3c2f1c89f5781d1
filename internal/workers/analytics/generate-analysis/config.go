// internal/workers/analytics/generate-analysis/config.go
package generateanalysis

import (
	"time"

	"sales-insight-workers/internal/analysis"
)

type Config struct {
	Timeout time.Duration
	// RetryContextChars bounds the business context quoted in the retry prompt.
	RetryContextChars int
	MaxStatements     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           120 * time.Second,
		RetryContextChars: 500,
		MaxStatements:     analysis.DefaultMaxStatements,
	}
}
