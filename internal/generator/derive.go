package generator

import "github.com/steplab/backend/internal/models"

// stepCounts is the fixed length→count table.
var stepCounts = map[models.LengthBucket]int{
	models.LengthShort:  3,
	models.LengthMedium: 5,
	models.LengthLong:   7,
}

// StepCount resolves the step count for a request. Unknown lengths resolve
// to the short bucket.
func StepCount(length models.LengthBucket) int {
	if n, ok := stepCounts[length]; ok {
		return n
	}
	return stepCounts[models.LengthShort]
}

var learningTemplates = map[int][]models.BloomLevel{
	3: {models.BloomRemember, models.BloomAnalyze, models.BloomCreate},
	5: {models.BloomRemember, models.BloomUnderstand, models.BloomApply, models.BloomAnalyze, models.BloomCreate},
	7: {models.BloomRemember, models.BloomUnderstand, models.BloomApply, models.BloomAnalyze, models.BloomEvaluate, models.BloomEvaluate, models.BloomCreate},
}

var examTemplates = map[int][]models.BloomLevel{
	3: {models.BloomRemember, models.BloomApply, models.BloomEvaluate},
	5: {models.BloomRemember, models.BloomUnderstand, models.BloomApply, models.BloomAnalyze, models.BloomEvaluate},
	7: {models.BloomRemember, models.BloomUnderstand, models.BloomApply, models.BloomApply, models.BloomAnalyze, models.BloomEvaluate, models.BloomEvaluate},
}

// BloomSequence derives the per-step bloom levels for a request: the
// mode-selected template, unless an explicit weighted distribution was
// supplied.
func BloomSequence(req models.GenerationRequest) []models.BloomLevel {
	count := StepCount(req.Length)

	if req.BloomWeights != nil {
		return weightedSequence(count, *req.BloomWeights)
	}

	templates := learningTemplates
	if req.Mode == models.ModeExam {
		templates = examTemplates
	}
	seq := make([]models.BloomLevel, count)
	copy(seq, templates[count])
	return seq
}

// weightedSequence allocates steps across the three cognitive bands by
// floor division, then hands out the remainder slots one each in priority
// order evaluation > application > knowledge. Naive rounding would
// systematically over- or under-allocate.
func weightedSequence(count int, w models.BloomWeights) []models.BloomLevel {
	total := w.Knowledge + w.Application + w.Evaluation
	if total <= 0 {
		return weightedSequence(count, models.BloomWeights{Knowledge: 1, Application: 1, Evaluation: 1})
	}

	knowledge := w.Knowledge * count / total
	application := w.Application * count / total
	evaluation := w.Evaluation * count / total

	remainder := count - knowledge - application - evaluation
	for _, slot := range []*int{&evaluation, &application, &knowledge} {
		if remainder == 0 {
			break
		}
		*slot++
		remainder--
	}

	seq := make([]models.BloomLevel, 0, count)
	for i := 0; i < knowledge; i++ {
		seq = append(seq, models.BloomRemember)
	}
	for i := 0; i < application; i++ {
		seq = append(seq, models.BloomApply)
	}
	for i := 0; i < evaluation; i++ {
		seq = append(seq, models.BloomEvaluate)
	}
	return seq
}
