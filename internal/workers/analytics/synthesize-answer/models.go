// internal/workers/analytics/synthesize-answer/models.go
package synthesizeanswer

import "sales-insight-workers/internal/models"

type Input struct {
	RequestID      string                   `json:"requestId"`
	Question       string                   `json:"question"`
	Classification *models.Classification   `json:"classification"`
	Analysis       *models.AnalysisOutcome  `json:"analysis"`
	Context        *models.RetrievedContext `json:"retrievedContext"`
}

type Output struct {
	Answer    string `json:"answer"`
	Agent     string `json:"agent"`
	QueryType string `json:"queryType"`
}
