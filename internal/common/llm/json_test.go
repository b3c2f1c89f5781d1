package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\": {\"b\": 2}}\n```", `{"a": {"b": 2}}`, true},
		{"prose around", `Here you go: {"types":["schema"]} hope it helps {"x":1}`, `{"types":["schema"]}`, true},
		{"brace in string", `{"note":"use } carefully","n":1}`, `{"note":"use } carefully","n":1}`, true},
		{"escaped quote", `{"q":"say \"hi\" {","n":1}`, `{"q":"say \"hi\" {","n":1}`, true},
		{"unclosed then closed", `{ broken {"ok":true}`, `{"ok":true}`, true},
		{"none", "I cannot answer that.", "", false},
		{"never closed", `{"a":`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
