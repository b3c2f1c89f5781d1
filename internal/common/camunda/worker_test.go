package camunda

import (
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/common/errors"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/validation"
)

var questionSchema = validation.MustValidator(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"question"},
	"properties": map[string]interface{}{
		"question": map[string]interface{}{"type": "string", "minLength": 1},
	},
})

func TestCheckInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
	}{
		{"valid", `{"question": "Revenue in 2024?", "requestId": "r1"}`, false},
		{"missing question", `{"requestId": "r1"}`, true},
		{"empty question", `{"question": ""}`, true},
		{"not json", `question=1`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckInput(questionSchema, tt.variables)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var stdErr *errors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
		})
	}
}

func TestValidateInput_PassesValidJobs(t *testing.T) {
	called := false
	handler := ValidateInput(questionSchema, errors.NewErrorHandler(logger.NewTestLogger(t)),
		func(client worker.JobClient, job entities.Job) { called = true })

	handler(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Variables: `{"question": "q"}`}})
	assert.True(t, called)
}
