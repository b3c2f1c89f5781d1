package generateanalysis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/analysis"
	apperrors "sales-insight-workers/internal/common/errors"
	"sales-insight-workers/internal/common/llm"
	"sales-insight-workers/internal/common/llm/llmtest"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/dataset"
	"sales-insight-workers/internal/models"
)

func testAccessor() *dataset.Accessor {
	frame := dataset.MustFrame(
		dataset.NewColumn("Year", []any{2023.0, 2023.0, 2024.0, 2024.0}),
		dataset.NewColumn("Division_Name", []any{"Cement", "FMCG", "Cement", "FMCG"}),
		dataset.NewColumn("Net_Amount_BDT", []any{1000.0, 400.0, 1500.0, 600.0}),
	)
	return dataset.NewAccessor(frame, dataset.Options{CalendarColumns: []string{"Year"}})
}

func createTestHandler(t *testing.T, gw llm.Gateway) *Handler {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	return NewHandler(cfg, gw, testAccessor(), logger.NewTestLogger(t))
}

func fenced(code string) string {
	return "Here you go:\n```python\n" + code + "\n```\n"
}

func descriptive() *models.Classification {
	return &models.Classification{QuestionType: models.QuestionTypeDescriptive}
}

func TestHandler_Execute_Scalar(t *testing.T) {
	gw := llmtest.New(fenced("result = df[df['Year'] == 2024]['Net_Amount_BDT'].sum()"))

	out, err := createTestHandler(t, gw).Execute(context.Background(), &Input{
		RequestID:      "r1",
		Question:       "What were 2024 sales?",
		Classification: descriptive(),
		Context:        &models.RetrievedContext{Success: true, Text: "\n=== SCHEMA ===\n\n[1] Net_Amount_BDT is revenue"},
	})
	require.NoError(t, err)

	a := out.Analysis
	require.True(t, a.Success, a.Error)
	assert.Equal(t, analysis.Scalar{Value: 2100}, a.Result())
	assert.Equal(t, 1, a.Attempts)
	assert.Equal(t, "result = df[df['Year'] == 2024]['Net_Amount_BDT'].sum()", a.Code)

	require.Equal(t, 1, gw.Calls())
	prompt := gw.Prompts()[0]
	assert.Contains(t, prompt, `USER QUERY: "What were 2024 sales?"`)
	assert.Contains(t, prompt, "Dataset Information:")
	assert.Contains(t, prompt, "Year (int64): values: [2023, 2024]")
	assert.Contains(t, prompt, "Net_Amount_BDT is revenue")
	assert.Contains(t, prompt, `"question_type": "descriptive"`)
	assert.NotContains(t, prompt, "PREDICTIVE/TREND")
	assert.NotContains(t, prompt, "STRATEGIC ANALYSIS")
}

func TestHandler_Execute_QuestionTypeExamples(t *testing.T) {
	tests := []struct {
		questionType models.QuestionType
		marker       string
	}{
		{models.QuestionTypePredictive, "PREDICTIVE/TREND ANALYSIS REQUIREMENTS"},
		{models.QuestionTypePrescriptive, "STRATEGIC ANALYSIS REQUIREMENTS"},
	}
	for _, tt := range tests {
		t.Run(string(tt.questionType), func(t *testing.T) {
			gw := llmtest.New(fenced("result = len(df)"))
			_, err := createTestHandler(t, gw).Execute(context.Background(), &Input{
				Question:       "q",
				Classification: &models.Classification{QuestionType: tt.questionType},
			})
			require.NoError(t, err)
			assert.Contains(t, gw.Prompts()[0], tt.marker)
		})
	}
}

func TestHandler_Execute_RetriesOnceAfterRejection(t *testing.T) {
	longContext := strings.Repeat("x", 600) + "TAIL-OF-CONTEXT"
	gw := llmtest.New(
		fenced("result = df[df['Year'] == 2024"),
		fenced("result = df.groupby('Division_Name')['Net_Amount_BDT'].sum().to_dict()"),
	)

	out, err := createTestHandler(t, gw).Execute(context.Background(), &Input{
		Question:       "Sales by division",
		Classification: descriptive(),
		Context:        &models.RetrievedContext{Success: true, Text: longContext},
	})
	require.NoError(t, err)

	a := out.Analysis
	require.True(t, a.Success, a.Error)
	assert.Equal(t, 2, a.Attempts)
	assert.Equal(t, analysis.KindMapping, a.Result().Kind())

	require.Equal(t, 2, gw.Calls())
	assert.Contains(t, gw.Prompts()[0], "TAIL-OF-CONTEXT")
	retry := gw.Prompts()[1]
	assert.Contains(t, retry, "Keep it under 5 lines")
	assert.Contains(t, retry, "must be one of: ")
	assert.Contains(t, retry, "groupby")
	assert.Contains(t, retry, "to_dict")
	assert.Contains(t, retry, strings.Repeat("x", 500)+"...")
	assert.NotContains(t, retry, "TAIL-OF-CONTEXT")
}

func TestHandler_Execute_TwoRejectionsFail(t *testing.T) {
	gw := llmtest.New(
		fenced("import os\nresult = 1"),
		fenced("result = (1 + 2"),
	)
	gw.Default = fenced("result = 1")

	out, err := createTestHandler(t, gw).Execute(context.Background(), &Input{Question: "q", Classification: descriptive()})
	require.NoError(t, err)

	a := out.Analysis
	assert.False(t, a.Success)
	assert.Nil(t, a.Data)
	assert.Equal(t, 2, a.Attempts)
	assert.Equal(t, string(apperrors.ErrCodeCodeValidationFailed), a.ErrorCode)
	assert.Equal(t,
		"Code validation failed: OS operations not allowed. Retry also failed: Incomplete code detected: unmatched parentheses. Code appears to be truncated.",
		a.Error)
	assert.Equal(t, 2, gw.Calls(), "exactly one regeneration")
}

func TestHandler_Execute_NoCodeFailsWithoutRetry(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"gateway failure", llm.ErrorPrefix + "quota exceeded", "Failed to generate analysis code: " + llm.ErrorPrefix + "quota exceeded"},
		{"empty response", "", "Failed to generate analysis code"},
		{"empty fence", "```python\n```", "Failed to generate analysis code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New(tt.response, fenced("result = len(df)"))

			out, err := createTestHandler(t, gw).Execute(context.Background(), &Input{Question: "How many rows?"})
			require.NoError(t, err)

			a := out.Analysis
			assert.False(t, a.Success)
			assert.Equal(t, 1, a.Attempts)
			assert.Equal(t, string(apperrors.ErrCodeCodeGenerationFailed), a.ErrorCode)
			assert.Equal(t, "GenerationError", a.ErrorKind)
			assert.Equal(t, tt.want, a.Error)
			assert.Equal(t, 1, gw.Calls(), "no regeneration")
		})
	}
}

func TestHandler_Execute_RetryGatewayFailureIsReported(t *testing.T) {
	gw := llmtest.New(fenced("import os\nresult = 1"), llm.ErrorPrefix+"quota exceeded")

	out, err := createTestHandler(t, gw).Execute(context.Background(), &Input{Question: "How many rows?"})
	require.NoError(t, err)

	a := out.Analysis
	assert.False(t, a.Success)
	assert.Equal(t, 2, a.Attempts)
	assert.Equal(t, string(apperrors.ErrCodeCodeValidationFailed), a.ErrorCode)
	assert.Contains(t, a.Error, "Retry also failed: Failed to generate analysis code: "+llm.ErrorPrefix+"quota exceeded")
}

func TestHandler_Execute_ExecutionFailures(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		errorCode apperrors.ErrorCode
		kind      string
		message   string
		traceback bool
	}{
		{
			name:      "no result bound",
			code:      "total = df['Net_Amount_BDT'].sum()",
			errorCode: apperrors.ErrCodeNoResultAssigned,
			kind:      "NoResult",
			message:   "Code executed but did not assign 'result' variable",
		},
		{
			name:      "missing column",
			code:      "result = df['Profit_BDT'].sum()",
			errorCode: apperrors.ErrCodeCodeExecutionFailed,
			kind:      "KeyError",
			message:   "KeyError: 'Profit_BDT'",
			traceback: true,
		},
		{
			name:      "division by zero",
			code:      "result = 1 / 0",
			errorCode: apperrors.ErrCodeCodeExecutionFailed,
			kind:      "ZeroDivisionError",
			traceback: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New(fenced(tt.code))
			out, err := createTestHandler(t, gw).Execute(context.Background(), &Input{Question: "q"})
			require.NoError(t, err)

			a := out.Analysis
			assert.False(t, a.Success)
			assert.Equal(t, string(tt.errorCode), a.ErrorCode)
			assert.Equal(t, tt.kind, a.ErrorKind)
			assert.Equal(t, tt.code, a.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, a.Error)
			}
			if tt.traceback {
				assert.Contains(t, a.Traceback, "Traceback (most recent call last):")
			}
			assert.Equal(t, 1, gw.Calls(), "runtime failures are not retried")
		})
	}
}

func TestHandler_Execute_EachRunGetsAFreshTable(t *testing.T) {
	code := fenced("df['Scratch'] = 1\nresult = len(df.columns)")
	gw := llmtest.New(code, code)
	h := createTestHandler(t, gw)

	for i := 0; i < 2; i++ {
		out, err := h.Execute(context.Background(), &Input{Question: "q"})
		require.NoError(t, err)
		require.True(t, out.Analysis.Success, out.Analysis.Error)
		assert.Equal(t, analysis.Scalar{Value: 4}, out.Analysis.Result())
	}
	assert.False(t, h.dataset.(*dataset.Accessor).HasColumn("Scratch"))
}

func TestHandler_Execute_EmptyDataset(t *testing.T) {
	empty := dataset.NewAccessor(dataset.MustFrame(dataset.NewColumn("Year", []any{})), dataset.Options{})
	gw := llmtest.New()
	h := NewHandler(LoadConfig(), gw, empty, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Question: "q"})
	require.NoError(t, err)
	assert.False(t, out.Analysis.Success)
	assert.Equal(t, string(apperrors.ErrCodeDatasetUnavailable), out.Analysis.ErrorCode)
	assert.Zero(t, gw.Calls())
}

func TestHandler_Execute_RequiresQuestion(t *testing.T) {
	_, err := createTestHandler(t, llmtest.New()).Execute(context.Background(), &Input{})

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab", truncate("ab", 3))
	assert.Equal(t, "a", truncate("a৳", 2), "never splits a rune")
}
