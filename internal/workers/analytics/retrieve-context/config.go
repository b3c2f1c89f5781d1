// internal/workers/analytics/retrieve-context/config.go
package retrievecontext

import "time"

type Config struct {
	Timeout time.Duration
	// PrimaryK passages are fetched for schema and products, SecondaryK for
	// every other category.
	PrimaryK   int
	SecondaryK int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    60 * time.Second,
		PrimaryK:   5,
		SecondaryK: 3,
	}
}
