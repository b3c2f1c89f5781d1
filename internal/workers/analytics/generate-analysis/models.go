// internal/workers/analytics/generate-analysis/models.go
package generateanalysis

import "sales-insight-workers/internal/models"

type Input struct {
	RequestID      string                   `json:"requestId"`
	Question       string                   `json:"question"`
	Classification *models.Classification   `json:"classification"`
	Context        *models.RetrievedContext `json:"retrievedContext"`
}

type Output struct {
	Analysis *models.AnalysisOutcome `json:"analysis"`
}
