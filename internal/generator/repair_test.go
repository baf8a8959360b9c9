package generator

import (
	"testing"

	"github.com/steplab/backend/internal/models"
)

func mcSpec(n int) models.StepSpec {
	return models.StepSpec{
		StepNumber:  n,
		Title:       "Cell structure",
		Focus:       "the parts of a plant cell",
		Bloom:       models.BloomRemember,
		Interaction: models.KindMultipleChoice,
	}
}

func specFor(kind models.InteractionKind) models.StepSpec {
	s := mcSpec(1)
	s.Interaction = kind
	return s
}

func TestNormalizeKind(t *testing.T) {
	cases := []struct {
		in   string
		want models.InteractionKind
	}{
		{"multiple_choice", models.KindMultipleChoice},
		{"Multiple-Choice", models.KindMultipleChoice},
		{"TRUE_FALSE", models.KindTrueFalse},
		{"true-false", models.KindTrueFalse},
		{"memory-game", models.KindMemoryGame},
		{"quiz", models.KindMultipleChoice},
		{"something_else", models.KindMultipleChoice},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeKind(c.in); got != c.want {
			t.Errorf("NormalizeKind(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveCorrectAnswer(t *testing.T) {
	options := []string{"Paris", "London", "Berlin"}
	cases := []struct {
		answer string
		want   string
	}{
		{"Paris", "Paris"},
		{"paris", "Paris"},
		{"  London  ", "London"},
		{"B) Berlin", "Berlin"},
		{"The answer is London", "London"},
		{"Madrid", "Paris"},
		{"", "Paris"},
	}
	for _, c := range cases {
		if got := resolveCorrectAnswer(options, c.answer); got != c.want {
			t.Errorf("resolveCorrectAnswer(%q) = %q, want %q", c.answer, got, c.want)
		}
	}
}

func TestResolveCorrectAnswerTruthLexicon(t *testing.T) {
	options := []string{"True", "False"}
	cases := map[string]string{
		"yes": "True", "t": "True", "correct": "True",
		"no": "False", "f": "False", "incorrect": "False",
	}
	for answer, want := range cases {
		if got := resolveCorrectAnswer(options, answer); got != want {
			t.Errorf("resolveCorrectAnswer(%q) = %q, want %q", answer, got, want)
		}
	}
}

func TestRepairMultipleChoiceHallucinatedAnswer(t *testing.T) {
	raw := Recover(`Sure! {"question": "Pick one.", "options": ["Option A", "Option B"], "correct_answer": "Option C"}`)
	content := RepairStep(mcSpec(1), raw, models.ModeLearning, "cells")

	mc, ok := content.Payload.(*models.MultipleChoice)
	if !ok {
		t.Fatalf("expected MultipleChoice payload, got %T", content.Payload)
	}
	if mc.CorrectAnswer != "Option A" {
		t.Errorf("expected first-option fallback, got %q", mc.CorrectAnswer)
	}
	if content.Synthesized {
		t.Error("a repairable step must not be marked synthesized")
	}
}

func TestRepairStepNilRawSynthesizesPlaceholder(t *testing.T) {
	content := RepairStep(mcSpec(2), nil, models.ModeLearning, "cells")
	if !content.Synthesized {
		t.Fatal("expected synthesized placeholder")
	}
	if content.Kind != models.KindMultipleChoice {
		t.Errorf("placeholder kind = %q", content.Kind)
	}
	if content.Spec.StepNumber != 2 {
		t.Errorf("placeholder lost step number: %d", content.Spec.StepNumber)
	}
	mc := content.Payload.(*models.MultipleChoice)
	if len(mc.Options) < 2 || mc.CorrectAnswer == "" {
		t.Error("placeholder must satisfy multiple choice invariants")
	}
}

func TestRepairStepTooFewOptionsSynthesizes(t *testing.T) {
	raw := map[string]any{"question": "Pick.", "options": []any{"only one"}}
	content := RepairStep(mcSpec(1), raw, models.ModeLearning, "cells")
	if !content.Synthesized {
		t.Error("expected placeholder for single-option payload")
	}
}

func TestRepairStepExamStripsScaffolding(t *testing.T) {
	raw := map[string]any{
		"question":       "Pick one.",
		"options":        []any{"A", "B"},
		"correct_answer": "A",
		"teach_content":  "Here is how to think about it.",
		"hints":          []any{"look closely"},
	}
	content := RepairStep(mcSpec(1), raw, models.ModeExam, "cells")
	mc := content.Payload.(*models.MultipleChoice)
	if mc.Teach != "" {
		t.Errorf("exam step leaked teach content: %q", mc.Teach)
	}
	if len(mc.Hints) != 0 {
		t.Errorf("exam step leaked hints: %v", mc.Hints)
	}
}

func TestRepairStepExamStripsPlaceholderToo(t *testing.T) {
	content := RepairStep(mcSpec(1), nil, models.ModeExam, "cells")
	mc := content.Payload.(*models.MultipleChoice)
	if mc.Teach != "" || len(mc.Hints) != 0 {
		t.Error("synthesized exam placeholder must carry no scaffolding")
	}
}

func TestRepairTrueFalseDefaultOptions(t *testing.T) {
	raw := map[string]any{"statement": "Water boils at 100 degrees.", "correct_answer": "yes"}
	content := RepairStep(specFor(models.KindTrueFalse), raw, models.ModeLearning, "water")
	tf := content.Payload.(*models.TrueFalse)
	if len(tf.Options) != 2 || tf.Options[0] != "True" {
		t.Errorf("expected default True/False options, got %v", tf.Options)
	}
	if tf.CorrectAnswer != "True" {
		t.Errorf("expected lexicon resolution to True, got %q", tf.CorrectAnswer)
	}
}

func TestRepairOrderingFromProse(t *testing.T) {
	raw := map[string]any{
		"instruction": "First, boil the water. Then, add the pasta. Finally, drain it well.",
	}
	content := RepairStep(specFor(models.KindOrdering), raw, models.ModeLearning, "cooking")
	ord, ok := content.Payload.(*models.Ordering)
	if !ok {
		t.Fatalf("expected Ordering, got %T", content.Payload)
	}
	if len(ord.Items) != 3 {
		t.Fatalf("expected 3 sequence items, got %d: %v", len(ord.Items), ord.Items)
	}
}

func TestRepairOrderingExplicitItems(t *testing.T) {
	raw := map[string]any{
		"instruction":   "Put the phases in order.",
		"correct_order": []any{"egg", "larva", "pupa", "adult"},
	}
	content := RepairStep(specFor(models.KindOrdering), raw, models.ModeLearning, "insects")
	ord := content.Payload.(*models.Ordering)
	if len(ord.Items) != 4 || ord.Items[0] != "egg" {
		t.Errorf("unexpected items: %v", ord.Items)
	}
}

func TestRepairOrderingUnrecoverable(t *testing.T) {
	raw := map[string]any{"instruction": "Sort."}
	content := RepairStep(specFor(models.KindOrdering), raw, models.ModeLearning, "cells")
	if !content.Synthesized {
		t.Error("expected placeholder when no sequence can be recovered")
	}
}

func TestRepairCategorization(t *testing.T) {
	raw := map[string]any{
		"instruction": "Sort the foods.",
		"categories":  []any{"Fruit", "Vegetable"},
		"items": []any{
			map[string]any{"text": "Apple", "category": "fruit"},
			map[string]any{"text": "Carrot", "category": "Vegetable"},
			map[string]any{"text": "Pear"},
		},
	}
	content := RepairStep(specFor(models.KindCategorization), raw, models.ModeLearning, "food")
	cat := content.Payload.(*models.Categorization)
	if len(cat.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(cat.Items))
	}
	if cat.Items[0].Category != "Fruit" {
		t.Errorf("case-insensitive category match failed: %q", cat.Items[0].Category)
	}
	if cat.Items[2].Category != "Fruit" {
		t.Errorf("uncategorized item must land in the first category, got %q", cat.Items[2].Category)
	}
}

func TestRepairCategorizationGroupIndex(t *testing.T) {
	raw := map[string]any{
		"categories": []any{"Mammal", "Bird"},
		"items": []any{
			map[string]any{"text": "Sparrow", "group_index": float64(1)},
			map[string]any{"text": "Whale", "group_index": float64(0)},
		},
	}
	content := RepairStep(specFor(models.KindCategorization), raw, models.ModeLearning, "animals")
	cat := content.Payload.(*models.Categorization)
	if cat.Items[0].Category != "Bird" || cat.Items[1].Category != "Mammal" {
		t.Errorf("positional group resolution failed: %v", cat.Items)
	}
}

func TestRepairCategorizationUnrecoverable(t *testing.T) {
	raw := map[string]any{"categories": []any{"Only one"}}
	content := RepairStep(specFor(models.KindCategorization), raw, models.ModeLearning, "cells")
	if !content.Synthesized {
		t.Error("expected placeholder for single-category payload")
	}
}

func TestRepairMatchingPairObjects(t *testing.T) {
	raw := map[string]any{
		"pairs": []any{
			map[string]any{"term": "Dog", "match": "Mammal"},
			map[string]any{"term": "Frog", "match": "Amphibian"},
		},
	}
	content := RepairStep(specFor(models.KindMatching), raw, models.ModeLearning, "animals")
	m := content.Payload.(*models.Matching)
	if len(m.Pairs) != 2 || len(m.Left) != 2 || len(m.Right) != 2 {
		t.Fatalf("unexpected matching shape: %+v", m)
	}
	if m.Left[0] != "Dog" || m.Right[m.Pairs[0].Right] != "Mammal" {
		t.Errorf("pair correspondence broken: %+v", m)
	}
}

func TestRepairMatchingIndexShape(t *testing.T) {
	raw := map[string]any{
		"left":  []any{"1066", "1492"},
		"right": []any{"Battle of Hastings", "Columbus sails"},
		"pairs": []any{
			map[string]any{"left": float64(0), "right": float64(0)},
			map[string]any{"left": float64(1), "right": float64(1)},
		},
	}
	content := RepairStep(specFor(models.KindMatching), raw, models.ModeLearning, "history")
	m := content.Payload.(*models.Matching)
	if len(m.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(m.Pairs))
	}
}

func TestRepairMatchingAlwaysRecoverable(t *testing.T) {
	content := RepairStep(specFor(models.KindMatching), map[string]any{}, models.ModeLearning, "plants")
	if content.Synthesized {
		t.Fatal("matching must self-synthesize rather than fall back")
	}
	m := content.Payload.(*models.Matching)
	if len(m.Pairs) < 2 {
		t.Errorf("minimal matching payload must have 2 pairs, got %d", len(m.Pairs))
	}
}

func TestRepairFillInBlankBracketText(t *testing.T) {
	raw := map[string]any{"text": "The [sun] is a [star] at the center of our system."}
	content := RepairStep(specFor(models.KindFillInBlank), raw, models.ModeLearning, "space")
	fib := content.Payload.(*models.FillInBlank)
	if len(fib.Answers) != 2 || fib.Answers[0] != "sun" || fib.Answers[1] != "star" {
		t.Errorf("unexpected answers: %v", fib.Answers)
	}
}

func TestRepairFillInBlankParallelArrays(t *testing.T) {
	raw := map[string]any{
		"sentences": []any{"The capital of France is Paris.", "Water freezes at zero."},
		"answers":   []any{"Paris", "zero"},
	}
	content := RepairStep(specFor(models.KindFillInBlank), raw, models.ModeLearning, "facts")
	fib := content.Payload.(*models.FillInBlank)
	if len(fib.Answers) != 2 {
		t.Fatalf("expected 2 blanks, got %d (%q)", len(fib.Answers), fib.Text)
	}
	if fib.Answers[0] != "Paris" {
		t.Errorf("unexpected first answer: %q", fib.Answers[0])
	}
}

func TestRepairFillInBlankUnbracketedTextWithAnswers(t *testing.T) {
	raw := map[string]any{
		"text":    "Plants produce oxygen during photosynthesis.",
		"answers": []any{"oxygen"},
	}
	content := RepairStep(specFor(models.KindFillInBlank), raw, models.ModeLearning, "plants")
	fib := content.Payload.(*models.FillInBlank)
	if len(fib.Answers) != 1 || fib.Answers[0] != "oxygen" {
		t.Errorf("expected answer bracketed in place, got %v in %q", fib.Answers, fib.Text)
	}
}

func TestRepairFillInBlankUnrecoverable(t *testing.T) {
	raw := map[string]any{"text": "No blanks here at all."}
	content := RepairStep(specFor(models.KindFillInBlank), raw, models.ModeLearning, "cells")
	if !content.Synthesized {
		t.Error("expected placeholder when no blanks recovered")
	}
}

func TestRepairOpenQuestionAlwaysRecoverable(t *testing.T) {
	content := RepairStep(specFor(models.KindOpenQuestion), map[string]any{}, models.ModeLearning, "ecosystems")
	if content.Synthesized {
		t.Fatal("open question must self-synthesize")
	}
	oq := content.Payload.(*models.OpenQuestion)
	if oq.Question == "" || oq.Guidance == "" {
		t.Errorf("minimal open question incomplete: %+v", oq)
	}
}

func TestRepairMemoryGameKeyVariants(t *testing.T) {
	raw := map[string]any{
		"pairs": []any{
			map[string]any{"front": "H2O", "back": "Water"},
			map[string]any{"term": "NaCl", "definition": "Salt"},
		},
	}
	content := RepairStep(specFor(models.KindMemoryGame), raw, models.ModeLearning, "chemistry")
	mg := content.Payload.(*models.MemoryGame)
	if len(mg.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(mg.Pairs))
	}
	if mg.Pairs[0].Term != "H2O" || mg.Pairs[1].Definition != "Salt" {
		t.Errorf("key variant resolution failed: %+v", mg.Pairs)
	}
}

func TestRepairMemoryGameParallelArrays(t *testing.T) {
	raw := map[string]any{
		"terms":       []any{"mitosis", "meiosis"},
		"definitions": []any{"cell division", "gamete formation"},
	}
	content := RepairStep(specFor(models.KindMemoryGame), raw, models.ModeLearning, "biology")
	mg := content.Payload.(*models.MemoryGame)
	if len(mg.Pairs) != 2 {
		t.Errorf("expected 2 pairs from parallel arrays, got %d", len(mg.Pairs))
	}
}

func TestRepairMemoryGameUnrecoverable(t *testing.T) {
	raw := map[string]any{"pairs": []any{map[string]any{"term": "alone"}}}
	content := RepairStep(specFor(models.KindMemoryGame), raw, models.ModeLearning, "cells")
	if !content.Synthesized {
		t.Error("expected placeholder below 2 pairs")
	}
}

func TestRepairStepKindFromPayloadOverridesSpec(t *testing.T) {
	raw := map[string]any{
		"interaction": "true_false",
		"statement":   "The earth orbits the sun.",
	}
	content := RepairStep(mcSpec(1), raw, models.ModeLearning, "space")
	if content.Kind != models.KindTrueFalse {
		t.Errorf("payload kind tag should win, got %q", content.Kind)
	}
}
