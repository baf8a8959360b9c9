package generator

import (
	"fmt"
	"strings"

	"github.com/steplab/backend/internal/models"
)

// CatalogVersion is folded into artifact cache keys so that prompt
// revisions invalidate previously cached documents.
const CatalogVersion = "v3"

const SkeletonSystemPrompt = `You are an instructional designer planning a multi-step learning activity. You produce compact, well-structured step plans. Respond with JSON only; no prose before or after the object.`

const StepSystemPrompt = `You are an instructional content writer. You write one interactive learning step at a time, exactly matching the requested interaction format. Respond with JSON only; no prose before or after the object.`

const skeletonStructuralGuide = `Respond with JSON in exactly this shape:
{
  "title": "Activity title",
  "steps": [
    {
      "step_number": 1,
      "title": "Step title",
      "focus": "One sentence describing what this step covers",
      "forbidden_topics": ["topics later steps will cover"],
      "bloom_level": "Remember",
      "interaction": "multiple_choice"
    }
  ]
}
interaction must be one of: multiple_choice, true_false, ordering, categorization, matching, fill_in_blank, open_question, memory_game.`

// BuildSkeletonPrompt embeds the request context, the resolved step count,
// the bloom sequence, and the structural guide into one planning prompt.
func BuildSkeletonPrompt(req models.GenerationRequest, blooms []models.BloomLevel, level models.PedagogicalLevel) string {
	var sb strings.Builder

	if req.Topic != "" {
		fmt.Fprintf(&sb, "TOPIC: %s\n", req.Topic)
	} else {
		fmt.Fprintf(&sb, "SOURCE DOCUMENT:\n%s\n", req.SourceText)
	}
	fmt.Fprintf(&sb, "AUDIENCE: grade %d\n", req.Grade)
	if req.Tone != "" {
		fmt.Fprintf(&sb, "TONE: %s\n", req.Tone)
	}
	if level != "" {
		fmt.Fprintf(&sb, "PEDAGOGICAL LEVEL: %s, calibrate depth and vocabulary to this tier\n", level)
	}

	fmt.Fprintf(&sb, "\nPlan a %s activity with exactly %d steps.\n", req.Mode, len(blooms))
	sb.WriteString("Each step must match its assigned cognitive level, in order: ")
	for i, b := range blooms {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(string(b))
	}
	sb.WriteString(".\n")
	sb.WriteString("Name in forbidden_topics anything a later step covers, so steps do not overlap.\n\n")
	sb.WriteString(skeletonStructuralGuide)

	return sb.String()
}

// interactionGuides gives the per-kind response shape the repair engine
// expects. Kinds the model drifts on anyway are still repaired downstream.
var interactionGuides = map[models.InteractionKind]string{
	models.KindMultipleChoice: `{"question": "...", "options": ["...", "...", "...", "..."], "correct_answer": "<verbatim copy of one option>", "feedback": "...", "teach_content": "...", "hints": ["..."]}`,
	models.KindTrueFalse:      `{"statement": "...", "options": ["True", "False"], "correct_answer": "True", "feedback": "...", "teach_content": "...", "hints": ["..."]}`,
	models.KindOrdering:       `{"instruction": "...", "correct_order": ["first item", "second item", "..."], "teach_content": "...", "hints": ["..."]}`,
	models.KindCategorization: `{"instruction": "...", "categories": ["...", "..."], "items": [{"text": "...", "category": "<one of categories>"}], "teach_content": "...", "hints": ["..."]}`,
	models.KindMatching:       `{"instruction": "...", "left": ["...", "..."], "right": ["...", "..."], "pairs": [{"left": 0, "right": 0}], "teach_content": "...", "hints": ["..."]}`,
	models.KindFillInBlank:    `{"text": "A sentence with the [hidden] words in [brackets].", "teach_content": "...", "hints": ["..."]}`,
	models.KindOpenQuestion:   `{"question": "...", "guidance": "what a complete answer contains", "teach_content": "...", "hints": ["..."]}`,
	models.KindMemoryGame:     `{"instruction": "...", "pairs": [{"term": "...", "definition": "..."}], "teach_content": "...", "hints": ["..."]}`,
}

// BuildStepPrompt builds one independent step-completion prompt carrying
// the step's focus, forbidden topics, bloom level, interaction format and,
// under exam mode, the scaffolding prohibition.
func BuildStepPrompt(req models.GenerationRequest, spec models.StepSpec, level models.PedagogicalLevel, mode models.Mode) string {
	var sb strings.Builder

	if req.Topic != "" {
		fmt.Fprintf(&sb, "TOPIC: %s\n", req.Topic)
	} else {
		fmt.Fprintf(&sb, "SOURCE DOCUMENT:\n%s\n", req.SourceText)
	}
	fmt.Fprintf(&sb, "AUDIENCE: grade %d\n", req.Grade)
	if req.Tone != "" {
		fmt.Fprintf(&sb, "TONE: %s\n", req.Tone)
	}
	if level != "" {
		fmt.Fprintf(&sb, "PEDAGOGICAL LEVEL: %s\n", level)
	}

	fmt.Fprintf(&sb, "\nWrite step %d of the activity: %q\n", spec.StepNumber, spec.Title)
	fmt.Fprintf(&sb, "FOCUS: %s\n", spec.Focus)
	fmt.Fprintf(&sb, "COGNITIVE LEVEL: %s\n", spec.Bloom)
	if len(spec.ForbiddenTopics) > 0 {
		fmt.Fprintf(&sb, "DO NOT COVER (other steps handle these): %s\n", strings.Join(spec.ForbiddenTopics, "; "))
	}

	fmt.Fprintf(&sb, "\nINTERACTION FORMAT: %s\nRespond with JSON in exactly this shape:\n%s\n",
		spec.Interaction, interactionGuides[spec.Interaction])

	if mode == models.ModeExam {
		sb.WriteString("\nThis is an assessment item. teach_content must be an empty string and hints must be an empty array. Do not include explanations that reveal the answer.\n")
	}

	return sb.String()
}
