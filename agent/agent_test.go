package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/model"
)

// MockModel records the requests a ModelAgent sends.
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	args := m.Called(ctx, req)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	if err := args.Error(1); err != nil {
		errCh <- err
	} else {
		respCh <- model.Response{Text: args.String(0), FinishReason: "stop"}
	}
	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *MockModel) Info() model.Info {
	return model.Info{Name: "mock", Provider: "testify"}
}

func TestModelAgent_Request(t *testing.T) {
	llm := new(MockModel)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == "You review run run-1." &&
			req.LastUserText() == "Review draft" &&
			req.Stream
	})).Return("looks good", nil).Once()

	a := NewModelAgent("reviewer", llm, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("You review run {{.run_id}}.")
		o.Prompt = "Review {{.input}}"
		o.EnableStreaming = true
	})

	out, err := a.Invoke(context.Background(), "draft", viewWith())
	require.NoError(t, err)
	assert.Equal(t, "looks good", out)

	llm.AssertExpectations(t)
}

func TestModelAgent_DefaultInstruction(t *testing.T) {
	llm := new(MockModel)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == "You are writer, a helpful AI assistant." && !req.Stream
	})).Return("text", nil)

	a := NewModelAgent("writer", llm)

	_, err := a.Invoke(context.Background(), "x", viewWith())
	require.NoError(t, err)

	llm.AssertNumberOfCalls(t, "Generate", 1)
	assert.Equal(t, "writer", a.Name())
	assert.Same(t, llm, a.Model())
}

func TestModelAgent_ProviderInstruction(t *testing.T) {
	llm := new(MockModel)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == "Upstream keys: research"
	})).Return("ok", nil)

	a := NewModelAgent("writer", llm, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromFunc(func(view core.ContextView) (string, error) {
			return "Upstream keys: " + view.Keys()[0], nil
		})
	})

	view := viewWith(core.Succeeded("research", "research", "notes", 1, 0))

	_, err := a.Invoke(context.Background(), "x", view)
	require.NoError(t, err)
	llm.AssertExpectations(t)
}
