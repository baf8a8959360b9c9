package models

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStepContentJSONRoundTrip(t *testing.T) {
	original := StepContent{
		Spec: StepSpec{StepNumber: 2, Title: "T", Focus: "f", Bloom: BloomApply, Interaction: KindOrdering},
		Kind: KindOrdering,
		Payload: &Ordering{
			Instruction: "Put them in order.",
			Items:       []string{"first", "second", "third"},
			Scaffolding: Scaffolding{Teach: "teach", Hints: []string{"hint"}},
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}

	var restored StepContent
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatal(err)
	}

	if restored.Kind != KindOrdering {
		t.Fatalf("kind lost: %s", restored.Kind)
	}
	ord, ok := restored.Payload.(*Ordering)
	if !ok {
		t.Fatalf("payload variant lost, got %T", restored.Payload)
	}
	if len(ord.Items) != 3 || ord.Items[0] != "first" {
		t.Errorf("payload content lost: %v", ord.Items)
	}
	if restored.Spec.StepNumber != 2 {
		t.Errorf("spec lost: %+v", restored.Spec)
	}
}

func TestStepContentUnknownKind(t *testing.T) {
	var sc StepContent
	err := json.Unmarshal([]byte(`{"kind": "hologram", "payload": {}}`), &sc)
	if err == nil {
		t.Error("unknown kind must fail to decode")
	}
}

func TestStripScaffolding(t *testing.T) {
	mc := &MultipleChoice{
		Question:    "Q",
		Options:     []string{"a", "b"},
		Scaffolding: Scaffolding{Teach: "teach", Hints: []string{"h1", "h2"}},
	}
	mc.StripScaffolding()

	if mc.Teach != "" {
		t.Error("teach content not cleared")
	}
	if mc.Hints == nil || len(mc.Hints) != 0 {
		t.Error("hints must become an empty slice, not nil")
	}

	data, err := json.Marshal(mc)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	json.Unmarshal(data, &decoded)
	if hints, ok := decoded["hints"].([]any); !ok || len(hints) != 0 {
		t.Errorf("hints must serialize as [], got %v", decoded["hints"])
	}
}

func TestSubject(t *testing.T) {
	topic := GenerationRequest{Topic: "Volcanoes"}
	if topic.Subject() != "Volcanoes" {
		t.Errorf("unexpected subject: %q", topic.Subject())
	}

	long := GenerationRequest{SourceText: string(make([]byte, 200))}
	if len(long.Subject()) != 80 {
		t.Errorf("source subject must truncate to 80, got %d", len(long.Subject()))
	}

	// "ö" straddles byte 80; truncation must not leave half a rune behind.
	multibyte := GenerationRequest{SourceText: strings.Repeat("a", 79) + "öö"}
	got := multibyte.Subject()
	if !utf8.ValidString(got) {
		t.Fatalf("truncated subject is not valid UTF-8: %q", got)
	}
	if got != strings.Repeat("a", 79) {
		t.Errorf("expected cut at rune boundary, got %q (len %d)", got, len(got))
	}

	short := GenerationRequest{SourceText: "brief"}
	if short.Subject() != "brief" {
		t.Errorf("short source text must pass through, got %q", short.Subject())
	}
}
