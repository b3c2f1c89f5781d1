// internal/workers/analytics/retrieve-context/models.go
package retrievecontext

import "sales-insight-workers/internal/models"

type Input struct {
	RequestID      string                 `json:"requestId"`
	Question       string                 `json:"question"`
	Classification *models.Classification `json:"classification"`
}

type Output struct {
	Context *models.RetrievedContext `json:"retrievedContext"`
}
