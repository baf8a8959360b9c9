package models

import (
	"encoding/json"
	"fmt"
)

type InteractionKind string

const (
	KindMultipleChoice InteractionKind = "multiple_choice"
	KindTrueFalse      InteractionKind = "true_false"
	KindOrdering       InteractionKind = "ordering"
	KindCategorization InteractionKind = "categorization"
	KindMatching       InteractionKind = "matching"
	KindFillInBlank    InteractionKind = "fill_in_blank"
	KindOpenQuestion   InteractionKind = "open_question"
	KindMemoryGame     InteractionKind = "memory_game"
)

// Scaffolding holds the teaching text and hints attached to a step. In exam
// mode both fields are forced empty after repair, unconditionally.
type Scaffolding struct {
	Teach string   `json:"teach_content"`
	Hints []string `json:"hints"`
}

// StripScaffolding empties the teaching fields. Hints becomes an empty
// slice, not nil, so it serializes as [].
func (s *Scaffolding) StripScaffolding() {
	s.Teach = ""
	s.Hints = []string{}
}

// StepPayload is the closed union over interaction kinds. Every variant
// embeds Scaffolding, so StripScaffolding is promoted.
type StepPayload interface {
	Kind() InteractionKind
	StripScaffolding()
}

type MultipleChoice struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Feedback      string   `json:"feedback"`
	Scaffolding
}

func (*MultipleChoice) Kind() InteractionKind { return KindMultipleChoice }

type TrueFalse struct {
	Statement     string   `json:"statement"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Feedback      string   `json:"feedback"`
	Scaffolding
}

func (*TrueFalse) Kind() InteractionKind { return KindTrueFalse }

type Ordering struct {
	Instruction string   `json:"instruction"`
	Items       []string `json:"correct_order"`
	Scaffolding
}

func (*Ordering) Kind() InteractionKind { return KindOrdering }

type CategorizedItem struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type Categorization struct {
	Instruction string            `json:"instruction"`
	Categories  []string          `json:"categories"`
	Items       []CategorizedItem `json:"items"`
	Scaffolding
}

func (*Categorization) Kind() InteractionKind { return KindCategorization }

// MatchPair is one correspondence in a line-drawing matching step, indexing
// into the Left and Right lists.
type MatchPair struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

type Matching struct {
	Instruction string      `json:"instruction"`
	Left        []string    `json:"left"`
	Right       []string    `json:"right"`
	Pairs       []MatchPair `json:"pairs"`
	Scaffolding
}

func (*Matching) Kind() InteractionKind { return KindMatching }

// FillInBlank is the canonical bracket form: hidden tokens appear inline in
// Text delimited by square brackets, and Answers lists them in order.
type FillInBlank struct {
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
	Scaffolding
}

func (*FillInBlank) Kind() InteractionKind { return KindFillInBlank }

type OpenQuestion struct {
	Question string `json:"question"`
	Guidance string `json:"guidance"`
	Scaffolding
}

func (*OpenQuestion) Kind() InteractionKind { return KindOpenQuestion }

type TermDefinition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type MemoryGame struct {
	Instruction string           `json:"instruction"`
	Pairs       []TermDefinition `json:"pairs"`
	Scaffolding
}

func (*MemoryGame) Kind() InteractionKind { return KindMemoryGame }

// NewPayload returns a zero value of the variant for the given kind.
func NewPayload(kind InteractionKind) (StepPayload, error) {
	switch kind {
	case KindMultipleChoice:
		return &MultipleChoice{}, nil
	case KindTrueFalse:
		return &TrueFalse{}, nil
	case KindOrdering:
		return &Ordering{}, nil
	case KindCategorization:
		return &Categorization{}, nil
	case KindMatching:
		return &Matching{}, nil
	case KindFillInBlank:
		return &FillInBlank{}, nil
	case KindOpenQuestion:
		return &OpenQuestion{}, nil
	case KindMemoryGame:
		return &MemoryGame{}, nil
	}
	return nil, fmt.Errorf("unknown interaction kind %q", kind)
}

// UnmarshalJSON restores the payload variant from the kind tag, so cached
// documents round-trip through JSON.
func (sc *StepContent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Spec        StepSpec        `json:"spec"`
		Kind        InteractionKind `json:"kind"`
		Payload     json.RawMessage `json:"payload"`
		Synthesized bool            `json:"synthesized"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := NewPayload(raw.Kind)
	if err != nil {
		return err
	}
	if len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", raw.Kind, err)
		}
	}
	sc.Spec = raw.Spec
	sc.Kind = raw.Kind
	sc.Payload = payload
	sc.Synthesized = raw.Synthesized
	return nil
}
