package generator

import (
	"context"
	"fmt"
	"strings"
)

// MockGateway returns canned, well-formed completions for offline
// development. Fast-tier calls get a skeleton, quality-tier calls a step.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) ModelName(tier Tier) string {
	return "mock"
}

func (g *MockGateway) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	var text string
	if req.Tier == TierFast {
		text = buildMockSkeletonJSON(mockStepCount(req.Prompt))
	} else {
		text = mockStepJSON
	}

	if req.OnToken != nil {
		req.OnToken(text)
	}

	return &Completion{
		Text:         text,
		PromptTokens: 500,
		OutputTokens: 800,
	}, nil
}

// mockStepCount pulls the requested step count back out of the prompt so
// the mock skeleton matches what the planner asked for.
func mockStepCount(prompt string) int {
	for _, n := range []int{7, 5, 3} {
		if strings.Contains(prompt, fmt.Sprintf("exactly %d steps", n)) {
			return n
		}
	}
	return 3
}

func buildMockSkeletonJSON(count int) string {
	var sb strings.Builder
	sb.WriteString(`{"title":"[Mock] Introduction to the Topic","steps":[`)
	for i := 1; i <= count; i++ {
		if i > 1 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb,
			`{"step_number":%d,"title":"[Mock] Step %d","focus":"Core concept %d of the topic","bloom_level":"Remember","interaction":"multiple_choice"}`,
			i, i, i)
	}
	sb.WriteString("]}")
	return sb.String()
}

const mockStepJSON = `{
  "question": "[Mock] Which statement best describes the concept introduced in this step?",
  "options": [
    "[Mock] The concept describes a general principle that applies broadly.",
    "[Mock] The concept only applies in a single narrow situation.",
    "[Mock] The concept contradicts the earlier steps.",
    "[Mock] The concept is unrelated to the topic."
  ],
  "correct_answer": "[Mock] The concept describes a general principle that applies broadly.",
  "feedback": "[Mock] The first option captures the general principle.",
  "teach_content": "[Mock] This step introduces the core idea and shows how it applies.",
  "hints": ["[Mock] Re-read the first sentence of the explanation."]
}`
