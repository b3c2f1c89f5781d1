// internal/workers/analytics/answer-question/models.go
package answerquestion

import "sales-insight-workers/internal/models"

type Input struct {
	RequestID string `json:"requestId"`
	Question  string `json:"question"`
}

type Output struct {
	Response *models.AnswerResponse `json:"response"`
}

// Routes label how a question was handled.
const (
	RouteConversational = "conversational"
	RouteAnalytics      = "analytics"
	RouteError          = "error"
)
