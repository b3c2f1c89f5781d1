// internal/workers/analytics/answer-question/conversational.go
package answerquestion

import (
	"fmt"
	"strings"
)

const conversationalPrompt = `You are a friendly sales intelligence assistant%s.

USER QUERY: %q

This is a conversational query (greeting or general question), not a data analytics request.

Respond in a helpful, professional manner. Keep it brief (2-3 sentences).

Suggestions you can mention:
- I can help analyze sales data %s
- I can answer questions about revenue, trends, comparisons, and forecasts
- I can provide insights about specific time periods, products, or branches

Generate a natural, friendly response:
`

func buildConversationalPrompt(question, organization string, divisions []string) string {
	var org string
	if organization != "" {
		org = " for " + organization
	}
	return fmt.Sprintf(conversationalPrompt, org, question, divisionPhrase(divisions))
}

// divisionPhrase renders "across A, B, and C divisions".
func divisionPhrase(divisions []string) string {
	switch len(divisions) {
	case 0:
		return "across all divisions"
	case 1:
		return "across the " + divisions[0] + " division"
	case 2:
		return "across " + divisions[0] + " and " + divisions[1] + " divisions"
	}
	last := len(divisions) - 1
	return "across " + strings.Join(divisions[:last], ", ") + ", and " + divisions[last] + " divisions"
}
