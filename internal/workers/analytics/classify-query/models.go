// internal/workers/analytics/classify-query/models.go
package classifyquery

import "sales-insight-workers/internal/models"

type Input struct {
	RequestID string `json:"requestId"`
	Question  string `json:"question"`
}

type Output struct {
	Classification *models.Classification `json:"classification"`
	Route          string                 `json:"route"` // "conversational" or "analytics"
}

const (
	RouteConversational = "conversational"
	RouteAnalytics      = "analytics"
)
