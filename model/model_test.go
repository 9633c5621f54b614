package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_Final(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("hello", "world")

	resp, err := Collect(context.Background(), m, Request{Messages: []Message{UserMessage("hello")}})
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 1, m.Calls())
}

func TestCollect_Streaming(t *testing.T) {
	m := NewMockModel("mock", "test")

	resp, err := Collect(context.Background(), m, Request{Messages: []Message{UserMessage("ping")}, Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: ping", resp.Text)
}

func TestCollect_Error(t *testing.T) {
	m := NewMockModel("mock", "test")
	boom := errors.New("quota exceeded")
	m.SetError(boom)

	_, err := Collect(context.Background(), m, Request{Messages: []Message{UserMessage("x")}})
	assert.ErrorIs(t, err, boom)

	m.SetError(nil)
	_, err = Collect(context.Background(), m, Request{})
	assert.Error(t, err)
}

func TestRequest_LastUserText(t *testing.T) {
	req := Request{Messages: []Message{
		UserMessage("first"),
		{Role: "assistant", Content: "reply"},
		UserMessage("second"),
		{Role: "assistant", Content: "reply 2"},
	}}
	assert.Equal(t, "second", req.LastUserText())
	assert.Empty(t, Request{}.LastUserText())
}
