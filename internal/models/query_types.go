// internal/models/query_types.go
package models

import "strings"

// QuestionType is the analytics category the classifier assigns a question.
type QuestionType string

const (
	QuestionTypeDescriptive    QuestionType = "descriptive"
	QuestionTypeDiagnostic     QuestionType = "diagnostic"
	QuestionTypePredictive     QuestionType = "predictive"
	QuestionTypePrescriptive   QuestionType = "prescriptive"
	QuestionTypeConversational QuestionType = "conversational"
	QuestionTypeGreeting       QuestionType = "greeting"
)

// QuestionTypes lists every value the classifier may return.
var QuestionTypes = []QuestionType{
	QuestionTypeDescriptive,
	QuestionTypeDiagnostic,
	QuestionTypePredictive,
	QuestionTypePrescriptive,
	QuestionTypeConversational,
	QuestionTypeGreeting,
}

var agentLabels = map[QuestionType]string{
	QuestionTypeDescriptive:  "Data Analyst",
	QuestionTypeDiagnostic:   "Detective",
	QuestionTypePredictive:   "Forecaster",
	QuestionTypePrescriptive: "Strategist",
}

// Normalized maps anything outside the four analytics types to descriptive.
func (q QuestionType) Normalized() QuestionType {
	t := QuestionType(strings.ToLower(strings.TrimSpace(string(q))))
	if _, ok := agentLabels[t]; ok {
		return t
	}
	return QuestionTypeDescriptive
}

// AgentLabel names the persona that answers this type of question.
func (q QuestionType) AgentLabel() string {
	return agentLabels[q.Normalized()]
}

// Agent is the response agent field, e.g. "Forecaster Agent".
func (q QuestionType) Agent() string {
	return q.AgentLabel() + " Agent"
}

// Analytics is the response query_type field, e.g. "Predictive Analytics".
func (q QuestionType) Analytics() string {
	t := string(q.Normalized())
	return strings.ToUpper(t[:1]) + t[1:] + " Analytics"
}

// Labels used outside the analytics path.
const (
	ConversationalAgent     = "Conversational Assistant"
	ConversationalQueryType = "Greeting/Conversational"
	SystemAgent             = "System"
	ErrorQueryType          = "Error"
)
