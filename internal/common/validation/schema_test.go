package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contextTypesSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"context_types"},
	"properties": map[string]interface{}{
		"context_types": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}

func TestValidator_Validate(t *testing.T) {
	v, err := NewValidator(contextTypesSchema)
	require.NoError(t, err)

	tests := []struct {
		name  string
		doc   interface{}
		valid bool
	}{
		{"valid", map[string]interface{}{"context_types": []interface{}{"schema"}}, true},
		{"missing field", map[string]interface{}{}, false},
		{"wrong item type", map[string]interface{}{"context_types": []interface{}{1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				assert.NotEmpty(t, result.Error())
			}
		})
	}
}

func TestValidator_Decode(t *testing.T) {
	v := MustValidator(contextTypesSchema)

	var out struct {
		ContextTypes []string `json:"context_types"`
	}
	require.NoError(t, v.Decode([]byte(`{"context_types":["schema","products"]}`), &out))
	assert.Equal(t, []string{"schema", "products"}, out.ContextTypes)

	var rejected struct {
		ContextTypes []string `json:"context_types"`
	}
	err := v.Decode([]byte(`{"context_types":"schema"}`), &rejected)
	assert.Error(t, err)
	assert.Nil(t, rejected.ContextTypes)
}

func TestValidator_Decode_IgnoresFieldsOutsideSchema(t *testing.T) {
	v := MustValidator(contextTypesSchema)

	var out struct {
		ContextTypes []string `json:"context_types"`
	}
	require.NoError(t, v.Decode([]byte(`{"context_types":["schema"],"reasoning":"schema covers columns"}`), &out))
	assert.Equal(t, []string{"schema"}, out.ContextTypes)
}

func TestNewValidator_FromString(t *testing.T) {
	v, err := NewValidator(`{"type":"object","required":["question"]}`)
	require.NoError(t, err)

	result, err := v.ValidateJSON([]byte(`{"question":"total revenue?"}`))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestNewValidator_BadSchema(t *testing.T) {
	_, err := NewValidator(`{"type": 12}`)
	assert.Error(t, err)
}
