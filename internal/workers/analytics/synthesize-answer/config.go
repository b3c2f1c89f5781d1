// internal/workers/analytics/synthesize-answer/config.go
package synthesizeanswer

import "time"

type Config struct {
	Timeout time.Duration
	// ContextBudget is the number of context characters quoted before the
	// truncation marker.
	ContextBudget  int
	MaxRows        int
	CurrencySymbol string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        90 * time.Second,
		ContextBudget:  4000,
		MaxRows:        10,
		CurrencySymbol: "৳",
	}
}
