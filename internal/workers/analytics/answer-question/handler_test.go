package answerquestion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"sales-insight-workers/internal/analysis"
	apperrors "sales-insight-workers/internal/common/errors"
	"sales-insight-workers/internal/common/llm"
	"sales-insight-workers/internal/common/llm/llmtest"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/observability"
	"sales-insight-workers/internal/dataset"
	"sales-insight-workers/internal/knowledge"
	"sales-insight-workers/internal/models"
	classifyquery "sales-insight-workers/internal/workers/analytics/classify-query"
	generateanalysis "sales-insight-workers/internal/workers/analytics/generate-analysis"
	retrievecontext "sales-insight-workers/internal/workers/analytics/retrieve-context"
	synthesizeanswer "sales-insight-workers/internal/workers/analytics/synthesize-answer"
)

// Prompt markers for each stage.
const (
	classifyMarker   = "You are a query analysis expert"
	selectMarker     = "Available context types:"
	generateMarker   = "expert analysis code generator"
	retryMarker      = "Generate SIMPLE"
	synthesizeMarker = "RETRIEVED DATA FROM CSV:"
	converseMarker   = "friendly sales intelligence assistant"
)

type flatEmbedder struct{}

func (flatEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 1}, nil
}

func (flatEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 1}
	}
	return out, nil
}

func (flatEmbedder) Dimensions() int { return 2 }
func (flatEmbedder) Name() string    { return "test:flat" }

func testStages(t *testing.T, gw llm.Gateway) Stages {
	log := logger.NewTestLogger(t)

	store := knowledge.NewMemoryStore(flatEmbedder{})
	require.NoError(t, store.Index(context.Background(), []knowledge.Document{
		{ID: "schema-1", Type: models.DocTypeSchema, Content: "Net_Amount_BDT is net revenue in taka"},
		{ID: "products-1", Type: models.DocTypeProducts, Content: "Cement and FMCG are the main divisions"},
	}))

	frame := dataset.MustFrame(
		dataset.NewColumn("Year", []any{2023.0, 2024.0, 2024.0}),
		dataset.NewColumn("Division_Name", []any{"Cement", "Cement", "FMCG"}),
		dataset.NewColumn("Net_Amount_BDT", []any{1000.0, 2500.0, 700.0}),
	)
	accessor := dataset.NewAccessor(frame, dataset.Options{})

	return Stages{
		Classifier:  classifyquery.NewHandler(classifyquery.LoadConfig(), gw, log),
		Retriever:   retrievecontext.NewHandler(retrievecontext.LoadConfig(), gw, store, log),
		Analyzer:    generateanalysis.NewHandler(generateanalysis.LoadConfig(), gw, accessor, log),
		Synthesizer: synthesizeanswer.NewHandler(synthesizeanswer.LoadConfig(), gw, log),
	}
}

func createTestHandler(t *testing.T, gw llm.Gateway, stages Stages) *Handler {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Organization = "Akij Group"
	cfg.Divisions = []string{"FMCG", "Cement", "Textile"}
	return NewHandler(cfg, stages, gw, nil, logger.NewTestLogger(t))
}

const dataClassification = `{"is_greeting":"no","is_data_query":"yes","requires_data_access":"yes","question_type":"descriptive","intent":"analyze"}`

func TestHandler_Answer_AnalyticsPipeline(t *testing.T) {
	gw := llmtest.New().
		On(classifyMarker, dataClassification).
		On(selectMarker, `{"context_types": ["schema", "products"]}`).
		On(generateMarker, "```python\nresult = df[df['Year'] == 2024]['Net_Amount_BDT'].sum()\n```").
		On(synthesizeMarker, "**Total Revenue (2024):** ৳3,200")
	h := createTestHandler(t, gw, testStages(t, gw))

	resp := h.Answer(context.Background(), "", "What was revenue in 2024?")

	require.True(t, resp.Success, resp.Error)
	_, err := uuid.Parse(resp.RequestID)
	assert.NoError(t, err, "request id is generated")
	assert.Equal(t, "**Total Revenue (2024):** ৳3,200", resp.Answer)
	assert.Equal(t, "Data Analyst Agent", resp.Agent)
	assert.Equal(t, "Descriptive Analytics", resp.QueryType)
	assert.False(t, resp.SkippedDataRetrieval)
	require.NotNil(t, resp.Data)
	assert.Equal(t, analysis.Scalar{Value: 3200}, resp.Data.Result)
	assert.Equal(t, "result = df[df['Year'] == 2024]['Net_Amount_BDT'].sum()", resp.Code)
	assert.Equal(t, []string{"Net_Amount_BDT is net revenue in taka", "Cement and FMCG are the main divisions"}, resp.Context)

	assert.Equal(t, 1, gw.CallsContaining(classifyMarker))
	assert.Equal(t, 1, gw.CallsContaining(selectMarker))
	assert.Equal(t, 1, gw.CallsContaining(generateMarker))
	assert.Equal(t, 1, gw.CallsContaining(synthesizeMarker))

	synthesis := gw.Prompts()[3]
	assert.Contains(t, synthesis, "Result: ৳3,200")
	assert.Contains(t, synthesis, "=== SCHEMA ===")
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	return names
}

func recordingObservability() (*observability.Observability, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return observability.NewForTracerProvider("test", tp), recorder
}

func TestHandler_Answer_RecordsStageSpans(t *testing.T) {
	t.Run("analytics", func(t *testing.T) {
		obs, recorder := recordingObservability()
		gw := llmtest.New().
			On(classifyMarker, dataClassification).
			On(selectMarker, `{"context_types": ["schema"]}`).
			On(generateMarker, "```python\nresult = df['Net_Amount_BDT'].sum()\n```").
			On(synthesizeMarker, "Revenue was ৳4,200.")
		cfg := LoadConfig()
		cfg.Timeout = 5 * time.Second
		h := NewHandler(cfg, testStages(t, gw), gw, obs, logger.NewTestLogger(t))

		resp := h.Answer(context.Background(), "req-span", "Total revenue?")
		require.True(t, resp.Success, resp.Error)

		ended := recorder.Ended()
		assert.Equal(t, []string{
			"pipeline.classify", "pipeline.retrieve", "pipeline.analyze", "pipeline.synthesize", "pipeline.answer",
		}, spanNames(ended))

		root := ended[len(ended)-1]
		for _, s := range ended[:len(ended)-1] {
			assert.Equal(t, root.SpanContext().TraceID(), s.SpanContext().TraceID())
			assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), s.Name())
		}
		assert.Contains(t, root.Attributes(), attribute.String("request.id", "req-span"))
		assert.Contains(t, root.Attributes(), attribute.String("pipeline.route", RouteAnalytics))
	})

	t.Run("retrieval failure marks its span", func(t *testing.T) {
		obs, recorder := recordingObservability()
		gw := llmtest.New().
			On(classifyMarker, dataClassification).
			On(generateMarker, "```python\nresult = 1\n```").
			On(synthesizeMarker, "ok")
		stages := testStages(t, gw)
		stages.Retriever = fakeRetriever{err: errors.New("index unavailable")}
		cfg := LoadConfig()
		cfg.Timeout = 5 * time.Second
		h := NewHandler(cfg, stages, gw, obs, logger.NewTestLogger(t))

		h.Answer(context.Background(), "req-fail", "Total revenue?")

		var retrieve sdktrace.ReadOnlySpan
		for _, s := range recorder.Ended() {
			if s.Name() == "pipeline.retrieve" {
				retrieve = s
			}
		}
		require.NotNil(t, retrieve)
		assert.Equal(t, codes.Error, retrieve.Status().Code)
		assert.Equal(t, "index unavailable", retrieve.Status().Description)
	})
}

func TestHandler_Answer_Conversational(t *testing.T) {
	tests := []struct {
		name           string
		classification string
	}{
		{"greeting", `{"is_greeting":"yes","is_data_query":"no","question_type":"greeting"}`},
		{"general question", `{"is_greeting":"no","is_data_query":"no","question_type":"conversational"}`},
		{"no data access", `{"is_greeting":"no","is_data_query":"yes","requires_data_access":"no","question_type":"descriptive"}`},
		{"unparseable classification", "Hello there! I'm not sure what you mean."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New().
				On(classifyMarker, tt.classification).
				On(converseMarker, "Hi! I can help you analyze sales.")
			h := createTestHandler(t, gw, testStages(t, gw))

			resp := h.Answer(context.Background(), "req-1", "hello")

			assert.True(t, resp.Success)
			assert.Equal(t, "req-1", resp.RequestID)
			assert.Equal(t, "Hi! I can help you analyze sales.", resp.Answer)
			assert.Equal(t, models.ConversationalAgent, resp.Agent)
			assert.Equal(t, models.ConversationalQueryType, resp.QueryType)
			assert.True(t, resp.SkippedDataRetrieval)
			assert.Nil(t, resp.Data)
			assert.Equal(t, []string{}, resp.Context)

			assert.Zero(t, gw.CallsContaining(selectMarker), "retriever not invoked")
			assert.Zero(t, gw.CallsContaining(generateMarker), "code engine not invoked")
			assert.Equal(t, 2, gw.Calls())

			prompt := gw.Prompts()[1]
			assert.Contains(t, prompt, "assistant for Akij Group.")
			assert.Contains(t, prompt, "across FMCG, Cement, and Textile divisions")
		})
	}
}

func TestHandler_Answer_TwoValidationFailures(t *testing.T) {
	gw := llmtest.New().
		On(classifyMarker, dataClassification).
		On(selectMarker, `{"context_types": ["schema"]}`).
		On(retryMarker, "```python\nresult = (df['Net_Amount_BDT'].sum()\n```").
		On(generateMarker, "```python\nimport os\nresult = 1\n```").
		On(synthesizeMarker, "I could not retrieve the data for this question.")
	h := createTestHandler(t, gw, testStages(t, gw))

	resp := h.Answer(context.Background(), "req-2", "Revenue by year?")

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "OS operations not allowed")
	assert.Contains(t, resp.Error, "Retry also failed: Incomplete code detected: unmatched parentheses")
	assert.Equal(t, "I could not retrieve the data for this question.", resp.Answer)
	assert.Nil(t, resp.Data)
	assert.Equal(t, "Data Analyst Agent", resp.Agent)

	assert.Equal(t, 1, gw.CallsContaining(generateMarker))
	assert.Equal(t, 1, gw.CallsContaining(retryMarker), "exactly one regeneration")
	assert.Contains(t, gw.Prompts()[len(gw.Prompts())-1], "Data Retrieval Failed: Code validation failed:")
}

// Fakes for failure paths.

type fakeClassifier struct {
	out *classifyquery.Output
	err error
}

func (f fakeClassifier) Execute(ctx context.Context, input *classifyquery.Input) (*classifyquery.Output, error) {
	return f.out, f.err
}

type fakeRetriever struct{ err error }

func (f fakeRetriever) Execute(ctx context.Context, input *retrievecontext.Input) (*retrievecontext.Output, error) {
	return nil, f.err
}

type recordingAnalyzer struct {
	got   *generateanalysis.Input
	panic bool
}

func (a *recordingAnalyzer) Execute(ctx context.Context, input *generateanalysis.Input) (*generateanalysis.Output, error) {
	if a.panic {
		panic("index out of range")
	}
	a.got = input
	return &generateanalysis.Output{Analysis: &models.AnalysisOutcome{
		Success: true,
		Data:    &analysis.Envelope{Result: analysis.Scalar{Value: 1}},
		Code:    "result = 1",
	}}, nil
}

type fakeSynthesizer struct{ err error }

func (f fakeSynthesizer) Execute(ctx context.Context, input *synthesizeanswer.Input) (*synthesizeanswer.Output, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &synthesizeanswer.Output{Answer: "ok", Agent: "Data Analyst Agent", QueryType: "Descriptive Analytics"}, nil
}

func analyticsClassification() *classifyquery.Output {
	return &classifyquery.Output{
		Classification: &models.Classification{QuestionType: models.QuestionTypeDescriptive},
		Route:          classifyquery.RouteAnalytics,
	}
}

func TestHandler_Answer_RetrievalFailureUsesPlaceholder(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	h := createTestHandler(t, llmtest.New(), Stages{
		Classifier:  fakeClassifier{out: analyticsClassification()},
		Retriever:   fakeRetriever{err: apperrors.NewContextRetrievalFailedError(errors.New("index missing"))},
		Analyzer:    analyzer,
		Synthesizer: fakeSynthesizer{},
	})

	resp := h.Answer(context.Background(), "req-3", "q")

	require.True(t, resp.Success)
	require.NotNil(t, analyzer.got)
	assert.False(t, analyzer.got.Context.Success)
	assert.Equal(t, models.UnavailableContext, analyzer.got.Context.Text)
	assert.Equal(t, []string{}, resp.Context)
}

func TestHandler_Answer_StageErrorsBecomeErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		stages Stages
		want   string
	}{
		{
			name: "classifier error",
			stages: Stages{
				Classifier: fakeClassifier{err: errors.New("boom")},
			},
			want: "Processing error: boom",
		},
		{
			name: "analyzer panic",
			stages: Stages{
				Classifier: fakeClassifier{out: analyticsClassification()},
				Retriever:  fakeRetriever{err: errors.New("down")},
				Analyzer:   &recordingAnalyzer{panic: true},
			},
			want: "Processing error: index out of range",
		},
		{
			name: "synthesizer error",
			stages: Stages{
				Classifier:  fakeClassifier{out: analyticsClassification()},
				Retriever:   fakeRetriever{err: errors.New("down")},
				Analyzer:    &recordingAnalyzer{},
				Synthesizer: fakeSynthesizer{err: errors.New("quota")},
			},
			want: "Processing error: quota",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, llmtest.New(), tt.stages)
			resp := h.Answer(context.Background(), "req-4", "q")

			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.Error)
			assert.Equal(t, "I encountered an error: "+tt.want, resp.Answer)
			assert.Equal(t, models.SystemAgent, resp.Agent)
			assert.Equal(t, models.ErrorQueryType, resp.QueryType)
			assert.Equal(t, "req-4", resp.RequestID)
		})
	}
}

func TestHandler_Execute_ResponseShape(t *testing.T) {
	h := createTestHandler(t, llmtest.New(), Stages{
		Classifier:  fakeClassifier{out: analyticsClassification()},
		Retriever:   fakeRetriever{err: errors.New("down")},
		Analyzer:    &recordingAnalyzer{},
		Synthesizer: fakeSynthesizer{},
	})

	out, err := h.Execute(context.Background(), &Input{RequestID: "req-5", Question: "q"})
	require.NoError(t, err)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response": {
		"request_id": "req-5",
		"success": true,
		"answer": "ok",
		"data": {"type": "scalar", "value": 1},
		"context": [],
		"agent": "Data Analyst Agent",
		"query_type": "Descriptive Analytics",
		"code": "result = 1",
		"skipped_data_retrieval": false
	}}`, string(raw))
}

func TestHandler_Execute_RequiresQuestion(t *testing.T) {
	_, err := createTestHandler(t, llmtest.New(), Stages{}).Execute(context.Background(), &Input{Question: " "})

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
}

func TestDivisionPhrase(t *testing.T) {
	assert.Equal(t, "across all divisions", divisionPhrase(nil))
	assert.Equal(t, "across the Cement division", divisionPhrase([]string{"Cement"}))
	assert.Equal(t, "across FMCG and Cement divisions", divisionPhrase([]string{"FMCG", "Cement"}))
}
