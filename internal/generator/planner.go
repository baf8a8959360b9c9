package generator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/steplab/backend/internal/models"
)

// Planner derives the step plan for a request and resolves it through the
// fast completion tier. Planning always succeeds: a malformed or missing
// completion degrades to a synthesized placeholder skeleton with exactly
// the resolved step count.
type Planner struct {
	gateway Gateway
}

func NewPlanner(gateway Gateway) *Planner {
	return &Planner{gateway: gateway}
}

// PlanReport carries timing and usage for the skeleton_complete event.
type PlanReport struct {
	ElapsedMs    int64
	Fallback     bool
	PromptTokens int
	OutputTokens int
}

// Plan resolves the skeleton for one request (and, in differentiated mode,
// one pedagogical level). The returned skeleton always has exactly
// StepCount(req.Length) steps, numbered contiguously from 1.
func (p *Planner) Plan(ctx context.Context, req models.GenerationRequest, level models.PedagogicalLevel) (models.Skeleton, PlanReport) {
	start := time.Now()
	blooms := BloomSequence(req)

	temperature := 0.7
	if req.Mode == models.ModeExam {
		temperature = 0.3
	}

	// The skeleton is small; buffer the whole stream before parsing.
	completion, err := p.gateway.Complete(ctx, CompletionRequest{
		Tier:        TierFast,
		System:      SkeletonSystemPrompt,
		Prompt:      BuildSkeletonPrompt(req, blooms, level),
		Temperature: temperature,
		MaxTokens:   4096,
	})

	report := PlanReport{}
	var raw map[string]any
	if err != nil {
		log.Printf("WARN: skeleton completion failed: %v, synthesizing skeleton", err)
	} else {
		report.PromptTokens = completion.PromptTokens
		report.OutputTokens = completion.OutputTokens
		raw = Recover(completion.Text)
	}

	skeleton, ok := skeletonFrom(raw, req, blooms)
	if !ok {
		skeleton = SynthesizeSkeleton(req.Subject(), blooms)
		report.Fallback = true
	}

	report.ElapsedMs = time.Since(start).Milliseconds()
	return skeleton, report
}

// skeletonFrom validates the recovered plan and coerces it to exactly the
// resolved step count. A plan with no non-empty step array is rejected.
func skeletonFrom(raw map[string]any, req models.GenerationRequest, blooms []models.BloomLevel) (models.Skeleton, bool) {
	if raw == nil {
		return models.Skeleton{}, false
	}

	planned := rawMapSlice(raw, "steps", "plan")
	if len(planned) == 0 {
		return models.Skeleton{}, false
	}

	title := rawString(raw, "title", "activity_title")
	if title == "" {
		title = req.Subject()
	}

	count := len(blooms)
	steps := make([]models.StepSpec, count)
	for i := 0; i < count; i++ {
		spec := models.StepSpec{
			StepNumber:  i + 1,
			Bloom:       blooms[i],
			Interaction: models.KindMultipleChoice,
		}
		if i < len(planned) {
			m := planned[i]
			spec.Title = rawString(m, "title", "name")
			spec.Focus = rawString(m, "focus", "narrative_focus", "description")
			spec.ForbiddenTopics = rawStringSlice(m, "forbidden_topics", "avoid")
			if bloom := rawString(m, "bloom_level", "bloom"); bloom != "" {
				spec.Bloom = normalizeBloom(bloom, blooms[i])
			}
			if kind := NormalizeKind(rawString(m, "interaction", "interaction_type", "type")); kind != "" {
				spec.Interaction = kind
			}
		}
		if spec.Title == "" {
			spec.Title = fmt.Sprintf("Step %d: %s", i+1, req.Subject())
		}
		if spec.Focus == "" {
			spec.Focus = fmt.Sprintf("Part %d of %s", i+1, req.Subject())
		}
		steps[i] = spec
	}

	return models.Skeleton{Title: title, Steps: steps}, true
}

var bloomNames = map[string]models.BloomLevel{
	"remember": models.BloomRemember, "knowledge": models.BloomRemember,
	"understand": models.BloomUnderstand, "comprehension": models.BloomUnderstand,
	"apply": models.BloomApply, "application": models.BloomApply,
	"analyze": models.BloomAnalyze, "analysis": models.BloomAnalyze,
	"evaluate": models.BloomEvaluate, "evaluation": models.BloomEvaluate,
	"create": models.BloomCreate, "synthesis": models.BloomCreate,
}

func normalizeBloom(name string, fallback models.BloomLevel) models.BloomLevel {
	if level, ok := bloomNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return level
	}
	return fallback
}
