package generator

import (
	"testing"

	"github.com/steplab/backend/internal/models"
)

func TestStepCount(t *testing.T) {
	cases := []struct {
		length models.LengthBucket
		want   int
	}{
		{models.LengthShort, 3},
		{models.LengthMedium, 5},
		{models.LengthLong, 7},
		{"", 3},
		{"gigantic", 3},
	}
	for _, c := range cases {
		if got := StepCount(c.length); got != c.want {
			t.Errorf("StepCount(%q) = %d, want %d", c.length, got, c.want)
		}
	}
}

func TestBloomSequenceLearningTemplates(t *testing.T) {
	req := models.GenerationRequest{Mode: models.ModeLearning, Length: models.LengthShort}
	got := BloomSequence(req)
	want := []models.BloomLevel{models.BloomRemember, models.BloomAnalyze, models.BloomCreate}
	if len(got) != len(want) {
		t.Fatalf("expected %d levels, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: got %s, want %s", i+1, got[i], want[i])
		}
	}
}

func TestBloomSequenceExamTemplates(t *testing.T) {
	req := models.GenerationRequest{Mode: models.ModeExam, Length: models.LengthMedium}
	got := BloomSequence(req)
	if len(got) != 5 {
		t.Fatalf("expected 5 levels, got %d", len(got))
	}
	if got[0] != models.BloomRemember || got[4] != models.BloomEvaluate {
		t.Errorf("exam template ends wrong: %v", got)
	}
}

func TestBloomSequenceLongAscending(t *testing.T) {
	req := models.GenerationRequest{Mode: models.ModeLearning, Length: models.LengthLong}
	got := BloomSequence(req)
	if len(got) != 7 {
		t.Fatalf("expected 7 levels, got %d", len(got))
	}
	if got[0] != models.BloomRemember || got[6] != models.BloomCreate {
		t.Errorf("long template must open with Remember and close with Create: %v", got)
	}
}

func TestWeightedSequenceExhaustsSteps(t *testing.T) {
	seq := weightedSequence(5, models.BloomWeights{Knowledge: 1, Application: 1, Evaluation: 1})
	if len(seq) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(seq))
	}
	counts := map[models.BloomLevel]int{}
	for _, b := range seq {
		counts[b]++
	}
	// Floor gives one each; the two remainder slots go to evaluation then
	// application.
	if counts[models.BloomRemember] != 1 || counts[models.BloomApply] != 2 || counts[models.BloomEvaluate] != 2 {
		t.Errorf("remainder priority violated: %v", counts)
	}
}

func TestWeightedSequencePercentages(t *testing.T) {
	seq := weightedSequence(5, models.BloomWeights{Knowledge: 50, Application: 30, Evaluation: 20})
	counts := map[models.BloomLevel]int{}
	for _, b := range seq {
		counts[b]++
	}
	if counts[models.BloomRemember] != 2 || counts[models.BloomApply] != 1 || counts[models.BloomEvaluate] != 2 {
		t.Errorf("unexpected distribution: %v", counts)
	}
}

func TestWeightedSequenceSingleBand(t *testing.T) {
	seq := weightedSequence(3, models.BloomWeights{Knowledge: 10})
	for i, b := range seq {
		if b != models.BloomRemember {
			t.Errorf("step %d: expected Remember, got %s", i+1, b)
		}
	}
}

func TestWeightedSequenceOrderedByBand(t *testing.T) {
	seq := weightedSequence(7, models.BloomWeights{Knowledge: 2, Application: 2, Evaluation: 3})
	rank := map[models.BloomLevel]int{models.BloomRemember: 0, models.BloomApply: 1, models.BloomEvaluate: 2}
	for i := 1; i < len(seq); i++ {
		if rank[seq[i]] < rank[seq[i-1]] {
			t.Fatalf("bands out of order at %d: %v", i, seq)
		}
	}
}

func TestBloomSequenceWeightsOverrideTemplate(t *testing.T) {
	req := models.GenerationRequest{
		Mode:         models.ModeLearning,
		Length:       models.LengthShort,
		BloomWeights: &models.BloomWeights{Evaluation: 1},
	}
	got := BloomSequence(req)
	for _, b := range got {
		if b != models.BloomEvaluate {
			t.Errorf("weights must override the template: %v", got)
			break
		}
	}
}
