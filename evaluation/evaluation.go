// Package evaluation provides quality checks for synthesized results.
//
// An Evaluator scores a value and decides whether it passes. Check adapts an
// Evaluator to the quality predicate accepted by the synthesizer, so a
// failing evaluation surfaces as a QualityRejected failure.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/model"
)

// Result is the outcome of an evaluation.
type Result struct {
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
	Reason string  `json:"reason,omitempty"`
}

// Evaluator judges a synthesized value.
type Evaluator interface {
	Evaluate(ctx context.Context, value any) (*Result, error)
}

// Func is a functional adapter for Evaluator.
type Func func(ctx context.Context, value any) (*Result, error)

// Evaluate implements Evaluator.
func (f Func) Evaluate(ctx context.Context, value any) (*Result, error) { return f(ctx, value) }

// Check converts evaluators into a quality predicate. Every evaluator must pass.
func Check(evaluators ...Evaluator) func(ctx context.Context, value any) error {
	return func(ctx context.Context, value any) error {
		for _, e := range evaluators {
			res, err := e.Evaluate(ctx, value)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			if !res.Passed {
				return &core.Failure{
					Kind:    core.KindQualityRejected,
					Message: fmt.Sprintf("score %.2f: %s", res.Score, res.Reason),
				}
			}
		}
		return nil
	}
}

// Text renders a value as text for evaluation. Strings pass through; other
// values are rendered as JSON.
func Text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(b)
}

// NonEmpty rejects nil values, blank strings and empty maps or slices.
func NonEmpty() Evaluator {
	return Func(func(_ context.Context, value any) (*Result, error) {
		empty := false
		switch v := value.(type) {
		case nil:
			empty = true
		case string:
			empty = strings.TrimSpace(v) == ""
		case map[string]any:
			empty = len(v) == 0
		case []any:
			empty = len(v) == 0
		}
		if empty {
			return &Result{Score: 0, Passed: false, Reason: "empty result"}, nil
		}
		return &Result{Score: 1, Passed: true}, nil
	})
}

// MinLength requires the text form of the value to have at least n runes.
func MinLength(n int) Evaluator {
	return Func(func(_ context.Context, value any) (*Result, error) {
		l := len([]rune(Text(value)))
		if l < n {
			return &Result{Score: float64(l) / float64(n), Reason: fmt.Sprintf("length %d below minimum %d", l, n)}, nil
		}
		return &Result{Score: 1, Passed: true}, nil
	})
}

// JudgePrompt is the instruction sent to the judge model.
const JudgePrompt = `You are a strict reviewer. Rate the following response for completeness, accuracy and clarity on a scale from 0 to 10.
Answer with the score on the first line, followed by a one sentence justification.`

var scorePattern = regexp.MustCompile(`\d+(\.\d+)?`)

// ModelJudge asks a model to grade the value from 0 to 10 and passes values
// scoring at least threshold.
func ModelJudge(llm model.Model, threshold float64) Evaluator {
	return Func(func(ctx context.Context, value any) (*Result, error) {
		resp, err := model.Collect(ctx, llm, model.Request{
			Instructions: JudgePrompt,
			Messages:     []model.Message{model.UserMessage(Text(value))},
		})
		if err != nil {
			return nil, err
		}

		score, reason, err := parseScore(resp.Text)
		if err != nil {
			return nil, err
		}

		return &Result{Score: score, Passed: score >= threshold, Reason: reason}, nil
	})
}

func parseScore(text string) (float64, string, error) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")

	m := scorePattern.FindString(first)
	if m == "" {
		return 0, "", fmt.Errorf("judge returned no score: %q", first)
	}

	score, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, "", err
	}

	return min(score, 10), strings.TrimSpace(rest), nil
}
