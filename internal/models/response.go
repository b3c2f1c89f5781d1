// internal/models/response.go
package models

import "sales-insight-workers/internal/analysis"

// AnalysisOutcome is what the analysis engine reports for one question. A
// failed outcome is data: Error is shown to the synthesizer and the caller.
type AnalysisOutcome struct {
	Success   bool               `json:"success"`
	Data      *analysis.Envelope `json:"data"`
	Code      string             `json:"code,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorCode string             `json:"error_code,omitempty"`
	ErrorKind string             `json:"error_kind,omitempty"`
	Traceback string             `json:"traceback,omitempty"`
	Attempts  int                `json:"attempts"`
}

// Result returns the normalized result, or nil when there is none.
func (o *AnalysisOutcome) Result() analysis.Result {
	if o == nil || o.Data == nil {
		return nil
	}
	return o.Data.Result
}

// AnswerResponse is the single response shape returned for a question.
type AnswerResponse struct {
	RequestID            string             `json:"request_id"`
	Success              bool               `json:"success"`
	Answer               string             `json:"answer"`
	Data                 *analysis.Envelope `json:"data"`
	Context              []string           `json:"context"`
	Agent                string             `json:"agent"`
	QueryType            string             `json:"query_type"`
	Error                string             `json:"error,omitempty"`
	Code                 string             `json:"code,omitempty"`
	SkippedDataRetrieval bool               `json:"skipped_data_retrieval"`
}

// NewErrorResponse builds the uniform failure response.
func NewErrorResponse(requestID, message string) *AnswerResponse {
	return &AnswerResponse{
		RequestID: requestID,
		Success:   false,
		Answer:    "I encountered an error: " + message,
		Context:   []string{},
		Agent:     SystemAgent,
		QueryType: ErrorQueryType,
		Error:     message,
	}
}
