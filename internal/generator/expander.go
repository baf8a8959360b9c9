package generator

import (
	"context"
	"time"

	"github.com/steplab/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// StepReport carries per-step timing and usage for step_complete events.
type StepReport struct {
	StepNumber   int
	ElapsedMs    int64
	PromptTokens int
	OutputTokens int
}

// Expander fans out one quality-tier completion per planned step. All
// steps launch together with no ordering dependency among siblings; the
// join barrier guarantees every step resolved (generated or synthesized)
// before Expand returns. Failures never propagate: each one degrades to a
// repaired or placeholder step.
type Expander struct {
	gateway Gateway
}

func NewExpander(gateway Gateway) *Expander {
	return &Expander{gateway: gateway}
}

// Expand generates content for every step of the skeleton. onStep is
// invoked from the worker goroutines as each step resolves, in completion
// order; callers serialize through their publisher. The returned slice is
// in skeleton order and always has len(skeleton.Steps) entries.
func (e *Expander) Expand(ctx context.Context, req models.GenerationRequest, skeleton models.Skeleton, level models.PedagogicalLevel, mode models.Mode, onStep func(models.StepContent, StepReport)) []models.StepContent {
	results := make([]models.StepContent, len(skeleton.Steps))

	var g errgroup.Group
	for i, spec := range skeleton.Steps {
		i, spec := i, spec
		g.Go(func() error {
			start := time.Now()
			content, report := e.expandStep(ctx, req, spec, level, mode)
			report.ElapsedMs = time.Since(start).Milliseconds()
			report.StepNumber = spec.StepNumber
			results[i] = content
			if onStep != nil {
				onStep(content, report)
			}
			return nil
		})
	}
	g.Wait()

	return results
}

func (e *Expander) expandStep(ctx context.Context, req models.GenerationRequest, spec models.StepSpec, level models.PedagogicalLevel, mode models.Mode) (models.StepContent, StepReport) {
	completion, err := e.gateway.Complete(ctx, CompletionRequest{
		Tier:        TierQuality,
		System:      StepSystemPrompt,
		Prompt:      BuildStepPrompt(req, spec, level, mode),
		Temperature: TemperatureFor(mode, req.Style),
		MaxTokens:   8192,
	})

	report := StepReport{}
	var raw map[string]any
	if err == nil {
		report.PromptTokens = completion.PromptTokens
		report.OutputTokens = completion.OutputTokens
		raw = Recover(completion.Text)
	}
	// A transport failure and a parse failure funnel into the same repair
	// path: RepairStep with a nil object synthesizes the placeholder.
	return RepairStep(spec, raw, mode, req.Subject()), report
}
