package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/pkg/registry"
)

func writeRegistry(t *testing.T, taskTypes ...string) string {
	t.Helper()
	reg := &registry.ActivityRegistry{Version: "1.0.0"}
	for _, tt := range taskTypes {
		reg.Activities = append(reg.Activities, registry.Activity{
			ID:          tt,
			DisplayName: tt,
			Category:    "analytics",
			TaskType:    tt,
			Timeout:     "2m",
			Retries:     3,
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"question"},
			},
		})
	}
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, registry.Save(reg, path))
	return path
}

func TestValidateRegistry(t *testing.T) {
	n, err := validateRegistry(writeRegistry(t, analyticsTaskTypes...))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = validateRegistry(writeRegistry(t, analyticsTaskTypes[:4]...))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no activity registered for task type answer-question")
}

func TestUpdateActivity(t *testing.T) {
	path := writeRegistry(t, analyticsTaskTypes...)

	require.NoError(t, updateActivity(path, "generate-analysis", "timeout", "3m"))
	require.NoError(t, updateActivity(path, "generate-analysis", "retries", "1"))

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	a := reg.Find("generate-analysis")
	require.NotNil(t, a)
	assert.Equal(t, "3m", a.Timeout)
	assert.Equal(t, 1, a.Retries)
	assert.NotEmpty(t, reg.LastUpdated)

	tests := []struct {
		name     string
		taskType string
		field    string
		value    string
		wantErr  string
	}{
		{"unknown task", "send-email", "status", "completed", "not found"},
		{"bad timeout", "generate-analysis", "timeout", "soon", "invalid timeout"},
		{"negative retries", "generate-analysis", "retries", "-1", "invalid retries"},
		{"unknown field", "generate-analysis", "owner", "me", "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := updateActivity(path, tt.taskType, tt.field, tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_List(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"list", "-path", writeRegistry(t, "classify-query")}, &out))
	assert.Contains(t, out.String(), "classify-query")
	assert.Contains(t, out.String(), "2m")

	err := run([]string{"rename"}, &out)
	require.Error(t, err)
}

func TestValidateRegistry_Shipped(t *testing.T) {
	n, err := validateRegistry(filepath.Join("..", "..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	assert.Equal(t, len(analyticsTaskTypes), n)
}
