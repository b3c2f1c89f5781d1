package synthesizeanswer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/analysis"
	"sales-insight-workers/internal/common/llm"
	"sales-insight-workers/internal/common/llm/llmtest"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/models"
)

func createTestHandler(t *testing.T, gw llm.Gateway) *Handler {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	return NewHandler(cfg, gw, logger.NewTestLogger(t))
}

func classified(qt models.QuestionType) *models.Classification {
	return &models.Classification{QuestionType: qt}
}

func TestHandler_Execute_PersonaByQuestionType(t *testing.T) {
	tests := []struct {
		questionType models.QuestionType
		persona      string
		instructions string
		agent        string
		queryType    string
	}{
		{models.QuestionTypeDescriptive, `"WHAT HAPPENED?"`, "CRITICAL FORMATTING REQUIREMENTS", "Data Analyst Agent", "Descriptive Analytics"},
		{models.QuestionTypeDiagnostic, `"WHY DID IT HAPPEN?"`, "CRITICAL FORMATTING REQUIREMENTS", "Detective Agent", "Diagnostic Analytics"},
		{models.QuestionTypePredictive, `"WHAT WILL HAPPEN?"`, "CRITICAL FORMATTING REQUIREMENTS", "Forecaster Agent", "Predictive Analytics"},
		{models.QuestionTypePrescriptive, "DATA-DRIVEN recommendations", "STRATEGIC RECOMMENDATION INSTRUCTIONS", "Strategist Agent", "Prescriptive Analytics"},
	}
	for _, tt := range tests {
		t.Run(string(tt.questionType), func(t *testing.T) {
			gw := llmtest.New("**Total Revenue:** ৳360.0M")
			out, err := createTestHandler(t, gw).Execute(context.Background(), &Input{
				Question:       "How did we do?",
				Classification: classified(tt.questionType),
				Analysis:       &models.AnalysisOutcome{Success: true, Data: &analysis.Envelope{Result: analysis.Scalar{Value: 360000000}}},
			})
			require.NoError(t, err)

			assert.Equal(t, "**Total Revenue:** ৳360.0M", out.Answer)
			assert.Equal(t, tt.agent, out.Agent)
			assert.Equal(t, tt.queryType, out.QueryType)

			prompt := gw.Prompts()[0]
			assert.Contains(t, prompt, tt.persona)
			assert.Contains(t, prompt, tt.instructions)
			assert.Contains(t, prompt, "USER QUERY:\nHow did we do?")
			assert.Contains(t, prompt, "RETRIEVED DATA FROM CSV:\nResult: ৳360,000,000")
			assert.Contains(t, prompt, "BUSINESS CONTEXT FROM KNOWLEDGE BASE:\nNo additional context available")
			assert.NotContains(t, prompt, "{{cur}}")
		})
	}
}

func TestHandler_Execute_UnknownTypeUsesAnalyst(t *testing.T) {
	gw := llmtest.New("answer")
	out, err := createTestHandler(t, gw).Execute(context.Background(), &Input{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Data Analyst Agent", out.Agent)
	assert.Contains(t, gw.Prompts()[0], `"WHAT HAPPENED?"`)
	assert.Contains(t, gw.Prompts()[0], "Data Retrieval Failed: Unknown error")
}

func TestHandler_Execute_TruncatesContext(t *testing.T) {
	text := strings.Repeat("a", 4000) + "OVERFLOW"
	gw := llmtest.New("answer")

	_, err := createTestHandler(t, gw).Execute(context.Background(), &Input{
		Question: "q",
		Context:  &models.RetrievedContext{Success: true, Text: text},
	})
	require.NoError(t, err)

	prompt := gw.Prompts()[0]
	assert.Contains(t, prompt, strings.Repeat("a", 4000)+"\n... (truncated for brevity)")
	assert.NotContains(t, prompt, "OVERFLOW")
}

func TestHandler_Execute_ContextWithinBudgetIsUntouched(t *testing.T) {
	gw := llmtest.New("answer")
	_, err := createTestHandler(t, gw).Execute(context.Background(), &Input{
		Question: "q",
		Context:  &models.RetrievedContext{Text: models.UnavailableContext},
	})
	require.NoError(t, err)
	assert.Contains(t, gw.Prompts()[0], "BUSINESS CONTEXT FROM KNOWLEDGE BASE:\n"+models.UnavailableContext+"\n")
	assert.NotContains(t, gw.Prompts()[0], "truncated for brevity")
}

func TestHandler_Execute_EmptyAnswer(t *testing.T) {
	for _, response := range []string{"", "  \n\t", llm.EmptyResponseText} {
		out, err := createTestHandler(t, llmtest.New(response)).Execute(context.Background(), &Input{Question: "q"})
		require.NoError(t, err)
		assert.Equal(t, EmptyAnswer, out.Answer)
	}
}

func TestHandler_Execute_GatewayFailureTextIsPassedThrough(t *testing.T) {
	failure := llm.ErrorPrefix + "rate limited"
	out, err := createTestHandler(t, llmtest.New(failure)).Execute(context.Background(), &Input{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, failure, out.Answer)
}

func TestTruncateContext(t *testing.T) {
	assert.Equal(t, noContext, truncateContext("", 10))
	assert.Equal(t, "৳৳"+truncationMarker, truncateContext("৳৳৳", 2))
	assert.Equal(t, "abc", truncateContext("abc", 3))
}
