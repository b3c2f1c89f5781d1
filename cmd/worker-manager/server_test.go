package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/dataset"
)

func testSummary() dataset.Summary {
	return dataset.Summary{TotalTransactions: 3, TotalRevenue: 4200, Divisions: []string{"Cement"}}
}

func get(t *testing.T, mux http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth_IncludesDatasetSummary(t *testing.T) {
	mux := newServerMux(testSummary, func(ctx context.Context) map[string]error { return nil })

	rec, body := get(t, mux, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	data := body["dataset"].(map[string]interface{})
	assert.EqualValues(t, 3, data["total_transactions"])
	assert.EqualValues(t, 4200, data["total_revenue"])
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]error
		wantCode int
		want     map[string]interface{}
	}{
		{
			name:     "all healthy",
			checks:   map[string]error{"redis": nil, "zeebe": nil},
			wantCode: http.StatusOK,
			want:     map[string]interface{}{"redis": "ok", "zeebe": "ok"},
		},
		{
			name:     "one dependency down",
			checks:   map[string]error{"redis": nil, "elasticsearch": errors.New("elasticsearch ping failed")},
			wantCode: http.StatusServiceUnavailable,
			want:     map[string]interface{}{"redis": "ok", "elasticsearch": "elasticsearch ping failed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newServerMux(testSummary, func(ctx context.Context) map[string]error { return tt.checks })
			rec, body := get(t, mux, "/ready")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.want, body["checks"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newServerMux(testSummary, func(ctx context.Context) map[string]error { return nil })
	rec, _ := get(t, mux, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# TYPE")
}
