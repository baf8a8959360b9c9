package models

import (
	"time"
	"unicode/utf8"
)

type Mode string

const (
	ModeLearning Mode = "learning"
	ModeExam     Mode = "exam"
)

type LengthBucket string

const (
	LengthShort  LengthBucket = "short"
	LengthMedium LengthBucket = "medium"
	LengthLong   LengthBucket = "long"
)

type ProductStyle string

const (
	StyleStandard ProductStyle = "standard"
	StyleDialogic ProductStyle = "dialogic"
	StyleCreative ProductStyle = "creative"
)

type BloomLevel string

const (
	BloomRemember   BloomLevel = "Remember"
	BloomUnderstand BloomLevel = "Understand"
	BloomApply      BloomLevel = "Apply"
	BloomAnalyze    BloomLevel = "Analyze"
	BloomEvaluate   BloomLevel = "Evaluate"
	BloomCreate     BloomLevel = "Create"
)

// PedagogicalLevel names one tier of a differentiated activity.
type PedagogicalLevel string

const (
	LevelBasic        PedagogicalLevel = "basic"
	LevelIntermediate PedagogicalLevel = "intermediate"
	LevelAdvanced     PedagogicalLevel = "advanced"
)

// AllLevels is the fixed set used in differentiated mode, in display order.
var AllLevels = []PedagogicalLevel{LevelBasic, LevelIntermediate, LevelAdvanced}

// BloomWeights is an explicit weighted distribution over the three coarse
// cognitive bands. Weights are relative integers; they need not sum to 100.
type BloomWeights struct {
	Knowledge   int `json:"knowledge"`
	Application int `json:"application"`
	Evaluation  int `json:"evaluation"`
}

// GenerationRequest is one generation job as submitted by the client.
// Exactly one of Topic and SourceText must be set.
type GenerationRequest struct {
	Grade          int            `json:"grade"`
	Topic          string         `json:"topic,omitempty"`
	SourceText     string         `json:"source_text,omitempty"`
	Mode           Mode           `json:"mode"`
	Style          ProductStyle   `json:"style,omitempty"`
	Length         LengthBucket   `json:"length"`
	Tone           string         `json:"tone,omitempty"`
	Differentiated bool           `json:"differentiated,omitempty"`
	WithPractice   bool           `json:"with_practice,omitempty"`
	BloomWeights   *BloomWeights  `json:"bloom_weights,omitempty"`
}

// Subject returns the topic string or, for document-based requests, a
// truncated slice of the source text usable in prompts and placeholders.
func (r GenerationRequest) Subject() string {
	if r.Topic != "" {
		return r.Topic
	}
	const max = 80
	if len(r.SourceText) <= max {
		return r.SourceText
	}
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := max
	for cut > 0 && !utf8.RuneStart(r.SourceText[cut]) {
		cut--
	}
	return r.SourceText[:cut]
}

// StepSpec is one planned step of the skeleton, before any content exists.
type StepSpec struct {
	StepNumber      int             `json:"step_number"`
	Title           string          `json:"title"`
	Focus           string          `json:"focus"`
	ForbiddenTopics []string        `json:"forbidden_topics,omitempty"`
	Bloom           BloomLevel      `json:"bloom_level"`
	Interaction     InteractionKind `json:"interaction"`
}

// Skeleton is the validated step plan. Once built, len(Steps) always equals
// the step count resolved from the request length.
type Skeleton struct {
	Title string     `json:"title"`
	Steps []StepSpec `json:"steps"`
}

// StepContent pairs a planned step with its validated payload. After repair
// the payload always satisfies its kind's structural invariants.
type StepContent struct {
	Spec        StepSpec    `json:"spec"`
	Kind        InteractionKind `json:"kind"`
	Payload     StepPayload `json:"payload"`
	Synthesized bool        `json:"synthesized,omitempty"`
}

// ActivityArtifact is what the cache stores for one normalized request:
// a single document, or one per pedagogical level in differentiated mode.
type ActivityArtifact struct {
	ID        string             `json:"id"`
	Documents []ActivityDocument `json:"documents"`
}

// ActivityDocument is the assembled result of one generation job.
type ActivityDocument struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Mode      Mode             `json:"mode"`
	Grade     int              `json:"grade"`
	Level     PedagogicalLevel `json:"level,omitempty"`
	Steps     []StepContent    `json:"steps"`
	Practice  []StepContent    `json:"practice,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
