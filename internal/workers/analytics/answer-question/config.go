// internal/workers/analytics/answer-question/config.go
package answerquestion

import "time"

type Config struct {
	Timeout time.Duration
	// Organization and Divisions personalise the conversational reply.
	Organization string
	Divisions    []string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 300 * time.Second,
	}
}
