package generator

import (
	"fmt"

	"github.com/steplab/backend/internal/models"
)

// SynthesizePlaceholder builds a generic on-topic multiple-choice step for
// an unrecoverable payload. Steps are never dropped; the step-count
// invariant holds end to end.
func SynthesizePlaceholder(spec models.StepSpec, subject string) models.StepContent {
	focus := spec.Focus
	if focus == "" {
		focus = subject
	}

	return models.StepContent{
		Spec:        spec,
		Kind:        models.KindMultipleChoice,
		Synthesized: true,
		Payload: &models.MultipleChoice{
			Question: fmt.Sprintf("Which statement about %s is most accurate?", focus),
			Options: []string{
				fmt.Sprintf("%s is a central part of this topic.", focus),
				fmt.Sprintf("%s is unrelated to this topic.", focus),
				fmt.Sprintf("%s contradicts the rest of the material.", focus),
				fmt.Sprintf("%s has already been fully covered in an earlier step.", focus),
			},
			CorrectAnswer: fmt.Sprintf("%s is a central part of this topic.", focus),
			Feedback:      "This step could not be generated; review the topic material and continue.",
			Scaffolding: models.Scaffolding{
				Teach: fmt.Sprintf("Take a moment to review what you know about %s before moving on.", focus),
				Hints: []string{},
			},
		},
	}
}

// SynthesizeSkeleton builds a minimal placeholder skeleton with generic
// titles so downstream phases always receive exactly stepCount specs.
func SynthesizeSkeleton(subject string, blooms []models.BloomLevel) models.Skeleton {
	steps := make([]models.StepSpec, len(blooms))
	for i := range blooms {
		steps[i] = models.StepSpec{
			StepNumber:  i + 1,
			Title:       fmt.Sprintf("Step %d: %s", i+1, subject),
			Focus:       fmt.Sprintf("Part %d of %s", i+1, subject),
			Bloom:       blooms[i],
			Interaction: models.KindMultipleChoice,
		}
	}
	return models.Skeleton{
		Title: subject,
		Steps: steps,
	}
}
