package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validActivity(id string) Activity {
	return Activity{
		ID:          id,
		DisplayName: "Classify Query",
		Category:    "analytics",
		TaskType:    id,
		Timeout:     "90s",
		Retries:     2,
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	reg := &ActivityRegistry{Version: "1.0.0", Activities: []Activity{validActivity("classify-query")}}

	require.NoError(t, Save(reg, path))
	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Activities, loaded.Activities)
}

func TestActivityRegistry_Find(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{validActivity("classify-query"), validActivity("answer-question")}}

	a := reg.Find("answer-question")
	require.NotNil(t, a)
	assert.Equal(t, "answer-question", a.ID)
	assert.Nil(t, reg.Find("missing"))

	var none *ActivityRegistry
	assert.Nil(t, none.Find("classify-query"))
}

func TestActivityRegistry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ActivityRegistry)
		wantErr string
	}{
		{"valid", func(r *ActivityRegistry) {}, ""},
		{"empty", func(r *ActivityRegistry) { r.Activities = nil }, "no activities"},
		{"duplicate id", func(r *ActivityRegistry) {
			r.Activities = append(r.Activities, r.Activities[0])
		}, "duplicate activity ID"},
		{"duplicate task type", func(r *ActivityRegistry) {
			dup := validActivity("other")
			dup.TaskType = "classify-query"
			r.Activities = append(r.Activities, dup)
		}, "duplicate task type"},
		{"missing category", func(r *ActivityRegistry) { r.Activities[0].Category = "" }, "Category"},
		{"bad timeout", func(r *ActivityRegistry) { r.Activities[0].Timeout = "ninety" }, "invalid timeout"},
		{"negative retries", func(r *ActivityRegistry) { r.Activities[0].Retries = -1 }, "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: []Activity{validActivity("classify-query")}}
			tt.mutate(reg)
			err := reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestActivity_TimeoutDuration(t *testing.T) {
	a := validActivity("x")
	d, err := a.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	a.Timeout = ""
	d, err = a.TimeoutDuration()
	require.NoError(t, err)
	assert.Zero(t, d)
}
