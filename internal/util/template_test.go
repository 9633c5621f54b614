package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		text string
		data map[string]any
		want string
	}{
		{"no markers", "plain prompt", nil, "plain prompt"},
		{"field", "Summarize {{.input}}", map[string]any{"input": "Go & Rust"}, "Summarize Go & Rust"},
		{"nested", "Use: {{.results.research}}", map[string]any{"results": map[string]any{"research": "V"}}, "Use: V"},
		{"default", "{{default \"none\" .missing}}", map[string]any{}, "none"},
		{"upper", "{{upper .x}}", map[string]any{"x": "abc"}, "ABC"},
		{"title", "{{title .x}}", map[string]any{"x": "hELLO"}, "Hello"},
		{"join", "{{join \", \" .xs}}", map[string]any{"xs": []any{1, "b"}}, "1, b"},
		{"json", "{{json .m}}", map[string]any{"m": map[string]any{"k": 1}}, `{"k":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.text, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{.unclosed", nil)
	assert.Error(t, err)
}
