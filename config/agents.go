package config

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/orchestra/agent"
	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/logging"
	"github.com/hupe1980/orchestra/model"
	anthropicmodel "github.com/hupe1980/orchestra/model/anthropic"
	openaimodel "github.com/hupe1980/orchestra/model/openai"
)

// BuildModel creates the model.Model declared by ac.
func (ac AgentConfig) BuildModel(name string) (model.Model, error) {
	switch ac.Provider {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if ac.Model != "" {
				o.Model = ac.Model
			}
			if ac.Temperature != nil {
				o.Temperature = *ac.Temperature
			}
			if ac.MaxTokens > 0 {
				o.MaxCompletionTokens = ac.MaxTokens
			}
			o.APIKey = ac.APIKey
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if ac.Model != "" {
				o.Model = anthropic.Model(ac.Model)
			}
			if ac.Temperature != nil {
				o.Temperature = *ac.Temperature
			}
			if ac.MaxTokens > 0 {
				o.MaxTokens = ac.MaxTokens
			}
			o.APIKey = ac.APIKey
		}), nil
	case "mock":
		m := model.NewMockModel(name, "mock")
		for prompt, resp := range ac.Responses {
			m.AddResponse(prompt, resp)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("agent %s: unknown provider %q", name, ac.Provider)
	}
}

// BuildAgent creates a ModelAgent for role from ac.
func (ac AgentConfig) BuildAgent(role string, logger logging.Logger) (*agent.ModelAgent, error) {
	llm, err := ac.BuildModel(role)
	if err != nil {
		return nil, err
	}

	return agent.NewModelAgent(role, llm, func(o *agent.ModelAgentOptions) {
		if ac.Instruction != "" {
			o.Instruction = agent.NewInstructionFromText(ac.Instruction)
		}
		if ac.Prompt != "" {
			o.Prompt = ac.Prompt
		}
		o.EnableStreaming = ac.Stream
		o.MinLength = ac.MinLength
		if ac.RateLimit > 0 {
			o.RateLimiter = agent.PerMinute(ac.RateLimit)
		}
		if logger != nil {
			o.Logger = logger
		}
	}), nil
}

// BuildAgents creates the agents of every configured role.
func (c *Config) BuildAgents(logger logging.Logger) (map[core.Role]core.Agent, error) {
	out := make(map[core.Role]core.Agent, len(c.Agents))
	for role, ac := range c.Agents {
		a, err := ac.BuildAgent(role, logger)
		if err != nil {
			return nil, err
		}
		out[core.Role(role)] = a
	}
	return out, nil
}
