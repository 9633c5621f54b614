package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/orchestra/model"
)

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages([]model.Message{
		model.UserMessage("question"),
		{Role: "assistant", Content: "answer"},
		{Role: "user", Content: ""},
		{Role: "system", Content: "context"},
	})

	assert.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.MaxTokens = 256
	})

	info := m.Info()
	assert.Equal(t, "anthropic", info.Provider)
	assert.NotEmpty(t, info.Name)
	assert.Equal(t, int64(256), m.opts.MaxTokens)
}
