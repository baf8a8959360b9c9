package generator

import (
	"fmt"
	"log"
	"strings"

	"github.com/steplab/backend/internal/models"
)

// StructuralViolation describes why a recovered payload failed its kind's
// invariants. It never escapes the repair engine: the caller substitutes a
// synthesized placeholder and the violation is only logged.
type StructuralViolation struct {
	Kind   models.InteractionKind
	Reason string
}

func (v *StructuralViolation) Error() string {
	return fmt.Sprintf("structural violation (%s): %s", v.Kind, v.Reason)
}

// RepairStep turns a recovered completion object (possibly nil) into a
// StepContent guaranteed to satisfy its interaction kind's invariants.
// It never fails: unrecoverable payloads are replaced wholesale by a
// synthesized on-topic placeholder so the step count is preserved.
func RepairStep(spec models.StepSpec, raw map[string]any, mode models.Mode, subject string) models.StepContent {
	kind := NormalizeKind(rawString(raw, "interaction", "type", "kind"))
	if kind == "" {
		kind = NormalizeKind(string(spec.Interaction))
	}

	payload, err := repairPayload(kind, spec, raw, subject)
	content := models.StepContent{Spec: spec, Kind: kind, Payload: payload}
	if err != nil {
		log.Printf("WARN: step %d unrecoverable: %v, substituting placeholder", spec.StepNumber, err)
		content = SynthesizePlaceholder(spec, subject)
	}

	// Exam safety is unconditional and runs after type repair: scaffolding
	// leaking into an assessment is a correctness violation.
	if mode == models.ModeExam {
		content.Payload.StripScaffolding()
	}

	return content
}

// NormalizeKind maps a raw interaction tag onto the closed kind set.
// Hyphens become underscores; unknown tags fold to multiple_choice.
func NormalizeKind(tag string) models.InteractionKind {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), "-", "_")
	switch models.InteractionKind(normalized) {
	case models.KindMultipleChoice, models.KindTrueFalse, models.KindOrdering,
		models.KindCategorization, models.KindMatching, models.KindFillInBlank,
		models.KindOpenQuestion, models.KindMemoryGame:
		return models.InteractionKind(normalized)
	case "":
		return ""
	}
	return models.KindMultipleChoice
}

func repairPayload(kind models.InteractionKind, spec models.StepSpec, raw map[string]any, subject string) (models.StepPayload, error) {
	switch kind {
	case models.KindTrueFalse:
		return repairTrueFalse(spec, raw)
	case models.KindOrdering:
		return repairOrdering(spec, raw)
	case models.KindCategorization:
		return repairCategorization(spec, raw)
	case models.KindMatching:
		return repairMatching(spec, raw, subject)
	case models.KindFillInBlank:
		return repairFillInBlank(spec, raw)
	case models.KindOpenQuestion:
		return repairOpenQuestion(spec, raw)
	case models.KindMemoryGame:
		return repairMemoryGame(spec, raw)
	}
	return repairMultipleChoice(spec, raw)
}

// ── multiple_choice / true_false ───────────────────────────

func repairMultipleChoice(spec models.StepSpec, raw map[string]any) (models.StepPayload, error) {
	options := rawStringSlice(raw, "options", "choices", "answers")
	if len(options) < 2 {
		return nil, &StructuralViolation{Kind: models.KindMultipleChoice, Reason: fmt.Sprintf("need >=2 options, got %d", len(options))}
	}

	question := rawString(raw, "question", "prompt", "stem")
	if question == "" {
		question = spec.Focus
	}

	return &models.MultipleChoice{
		Question:      question,
		Options:       options,
		CorrectAnswer: resolveCorrectAnswer(options, rawString(raw, "correct_answer", "answer", "correct")),
		Feedback:      defaultFeedback(rawString(raw, "feedback", "explanation")),
		Scaffolding:   scaffoldingFrom(raw),
	}, nil
}

func repairTrueFalse(spec models.StepSpec, raw map[string]any) (models.StepPayload, error) {
	options := rawStringSlice(raw, "options", "choices")
	if len(options) < 2 {
		options = []string{"True", "False"}
	}

	statement := rawString(raw, "statement", "question", "prompt")
	if statement == "" {
		statement = spec.Focus
	}

	return &models.TrueFalse{
		Statement:     statement,
		Options:       options,
		CorrectAnswer: resolveCorrectAnswer(options, rawString(raw, "correct_answer", "answer", "correct")),
		Feedback:      defaultFeedback(rawString(raw, "feedback", "explanation")),
		Scaffolding:   scaffoldingFrom(raw),
	}, nil
}

// resolveCorrectAnswer guarantees the returned answer is one of options.
// Recovery strategies in fixed order: exact match, case-insensitive match,
// substring containment, true/false lexicon, first option as last resort.
func resolveCorrectAnswer(options []string, answer string) string {
	answer = strings.TrimSpace(answer)

	for _, opt := range options {
		if opt == answer {
			return opt
		}
	}

	lowered := strings.ToLower(answer)
	if lowered != "" {
		for _, opt := range options {
			if strings.ToLower(opt) == lowered {
				return opt
			}
		}
		for _, opt := range options {
			lo := strings.ToLower(opt)
			if strings.Contains(lo, lowered) || strings.Contains(lowered, lo) {
				return opt
			}
		}
		if canonical, ok := truthLexicon[lowered]; ok {
			for _, opt := range options {
				if strings.EqualFold(opt, canonical) {
					return opt
				}
			}
		}
	}

	return options[0]
}

var truthLexicon = map[string]string{
	"t": "True", "true": "True", "yes": "True", "correct": "True", "richtig": "True",
	"f": "False", "false": "False", "no": "False", "incorrect": "False", "falsch": "False",
}

func defaultFeedback(feedback string) string {
	if feedback != "" {
		return feedback
	}
	return "Check the step explanation to see why this answer is correct."
}

// ── ordering ───────────────────────────────────────────────

const minFragmentLen = 8

func repairOrdering(spec models.StepSpec, raw map[string]any) (models.StepPayload, error) {
	instruction := rawString(raw, "instruction", "question", "prompt", "text")
	if instruction == "" {
		instruction = spec.Focus
	}

	items := rawStringSlice(raw, "correct_order", "items", "sequence", "steps")
	if len(items) < 2 {
		items = splitSequenceText(instruction)
	}
	if len(items) < 2 {
		return nil, &StructuralViolation{Kind: models.KindOrdering, Reason: "fewer than 2 sequence items recovered"}
	}

	return &models.Ordering{
		Instruction: instruction,
		Items:       items,
		Scaffolding: scaffoldingFrom(raw),
	}, nil
}

// splitSequenceText reconstructs ordering items from prose: first by
// newlines, then by sentence boundaries, discarding short fragments.
func splitSequenceText(text string) []string {
	lines := collectFragments(strings.Split(text, "\n"))
	if len(lines) >= 2 {
		return lines
	}
	return collectFragments(splitSentences(text))
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func collectFragments(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p), "-*•0123456789. "))
		if len(p) >= minFragmentLen {
			out = append(out, p)
		}
	}
	return out
}

// ── categorization ─────────────────────────────────────────

func repairCategorization(spec models.StepSpec, raw map[string]any) (models.StepPayload, error) {
	instruction := rawString(raw, "instruction", "question", "prompt")
	if instruction == "" {
		instruction = spec.Focus
	}

	categories := categoryNames(raw)
	if len(categories) < 2 {
		return nil, &StructuralViolation{Kind: models.KindCategorization, Reason: fmt.Sprintf("need >=2 categories, got %d", len(categories))}
	}

	items := categorizedItems(raw, categories)
	if len(items) < 2 {
		// Last resort: bullet-list extraction from the free text.
		for _, text := range extractBullets(rawString(raw, "instruction", "text", "content")) {
			items = append(items, models.CategorizedItem{Text: text, Category: categories[0]})
		}
	}
	if len(items) < 2 {
		return nil, &StructuralViolation{Kind: models.KindCategorization, Reason: fmt.Sprintf("need >=2 items, got %d", len(items))}
	}

	return &models.Categorization{
		Instruction: instruction,
		Categories:  categories,
		Items:       items,
		Scaffolding: scaffoldingFrom(raw),
	}, nil
}

func categoryNames(raw map[string]any) []string {
	names := rawStringSlice(raw, "categories", "groups", "columns")
	if len(names) > 0 {
		return names
	}
	for _, m := range rawMapSlice(raw, "categories", "groups") {
		if name := rawString(m, "name", "title", "label"); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// categorizedItems forces every item to exactly one category: explicit
// field first, then positional group index, then the first category.
func categorizedItems(raw map[string]any, categories []string) []models.CategorizedItem {
	var items []models.CategorizedItem

	for _, m := range rawMapSlice(raw, "items", "elements", "entries") {
		text := rawString(m, "text", "item", "name", "value")
		if text == "" {
			continue
		}
		category := matchCategory(categories, rawString(m, "category", "group", "column"))
		if category == "" {
			if idx, ok := rawInt(m, "group_index", "category_index"); ok && idx >= 0 && idx < len(categories) {
				category = categories[idx]
			} else {
				category = categories[0]
			}
		}
		items = append(items, models.CategorizedItem{Text: text, Category: category})
	}

	if len(items) > 0 {
		return items
	}

	// Plain string items carry no category of their own.
	for _, text := range rawStringSlice(raw, "items", "elements") {
		items = append(items, models.CategorizedItem{Text: text, Category: categories[0]})
	}

	// Grouped form: categories key to their own item arrays.
	if grouped, ok := raw["groups"].(map[string]any); ok {
		items = items[:0]
		for _, cat := range categories {
			for _, text := range anySlice(grouped[cat]) {
				items = append(items, models.CategorizedItem{Text: text, Category: cat})
			}
		}
	}

	return items
}

func matchCategory(categories []string, name string) string {
	if name == "" {
		return ""
	}
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(name), c) {
			return c
		}
	}
	return ""
}

func extractBullets(text string) []string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "•") {
			item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*• "))
			if item != "" {
				bullets = append(bullets, item)
			}
		}
	}
	return bullets
}

// ── matching ───────────────────────────────────────────────

// repairMatching handles both shapes the upstream produces: explicit
// term/match pairs and left/right lists with a correspondence list. It is
// always recoverable; a minimal two-pair placeholder is synthesized when
// nothing usable exists.
func repairMatching(spec models.StepSpec, raw map[string]any, subject string) (models.StepPayload, error) {
	instruction := rawString(raw, "instruction", "question", "prompt")
	if instruction == "" {
		instruction = "Match each item on the left with its counterpart on the right."
	}

	m := &models.Matching{Instruction: instruction, Scaffolding: scaffoldingFrom(raw)}

	// Line-drawing shape: left + right lists, correspondences by index.
	left := rawStringSlice(raw, "left", "left_items")
	right := rawStringSlice(raw, "right", "right_items")
	if len(left) >= 2 && len(right) >= 2 {
		m.Left, m.Right = left, right
		for _, pm := range rawMapSlice(raw, "pairs", "connections", "matches") {
			li, lok := rawInt(pm, "left", "left_index")
			ri, rok := rawInt(pm, "right", "right_index")
			if lok && rok && li >= 0 && li < len(left) && ri >= 0 && ri < len(right) {
				m.Pairs = append(m.Pairs, models.MatchPair{Left: li, Right: ri})
			}
		}
		if len(m.Pairs) == 0 {
			for i := 0; i < len(left) && i < len(right); i++ {
				m.Pairs = append(m.Pairs, models.MatchPair{Left: i, Right: i})
			}
		}
		return m, nil
	}

	// Pair shape: list of {left,right} / {term,match} objects.
	for _, pm := range rawMapSlice(raw, "pairs", "matches", "items") {
		l := rawString(pm, "left", "term", "item", "text")
		r := rawString(pm, "right", "match", "category", "definition")
		if l != "" && r != "" {
			m.Left = append(m.Left, l)
			m.Right = append(m.Right, r)
			m.Pairs = append(m.Pairs, models.MatchPair{Left: len(m.Left) - 1, Right: len(m.Right) - 1})
		}
	}
	if len(m.Pairs) >= 2 {
		return m, nil
	}

	// Categorization shape reused as matching pairs.
	categories := categoryNames(raw)
	if len(categories) >= 2 {
		items := categorizedItems(raw, categories)
		if len(items) >= 2 {
			m.Left, m.Right, m.Pairs = nil, categories, nil
			for _, it := range items {
				m.Left = append(m.Left, it.Text)
				for ri, cat := range categories {
					if cat == it.Category {
						m.Pairs = append(m.Pairs, models.MatchPair{Left: len(m.Left) - 1, Right: ri})
						break
					}
				}
			}
			return m, nil
		}
	}

	// Minimal placeholder: two pairs on topic.
	m.Left = []string{
		fmt.Sprintf("A key term from %s", subject),
		fmt.Sprintf("Another term from %s", subject),
	}
	m.Right = []string{"Its definition", "Its counterpart"}
	m.Pairs = []models.MatchPair{{Left: 0, Right: 0}, {Left: 1, Right: 1}}
	return m, nil
}

// ── fill_in_blank ──────────────────────────────────────────

// repairFillInBlank converts every accepted input shape into the canonical
// bracket form, so downstream consumers see exactly one contract.
func repairFillInBlank(spec models.StepSpec, raw map[string]any) (models.StepPayload, error) {
	text := rawString(raw, "text", "body", "content")
	answers := rawStringSlice(raw, "answers", "blanks", "hidden_words")

	// Parallel sentence/answer arrays are converted into one bracketed text.
	if text == "" {
		sentences := rawStringSlice(raw, "sentences", "lines")
		if len(sentences) > 0 {
			var sb strings.Builder
			for i, sentence := range sentences {
				if i > 0 {
					sb.WriteString(" ")
				}
				if i < len(answers) {
					sb.WriteString(bracketAnswer(sentence, answers[i]))
				} else {
					sb.WriteString(sentence)
				}
			}
			text = sb.String()
		}
	} else if !strings.Contains(text, "[") {
		for _, answer := range answers {
			text = bracketAnswer(text, answer)
		}
	}

	extracted := extractBracketed(text)
	if len(extracted) == 0 {
		return nil, &StructuralViolation{Kind: models.KindFillInBlank, Reason: "no bracketed blanks recovered"}
	}

	return &models.FillInBlank{
		Text:        text,
		Answers:     extracted,
		Scaffolding: scaffoldingFrom(raw),
	}, nil
}

// bracketAnswer hides the answer inside the sentence, appending it when
// the sentence does not contain it verbatim.
func bracketAnswer(sentence, answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return sentence
	}
	if idx := strings.Index(sentence, answer); idx >= 0 {
		return sentence[:idx] + "[" + answer + "]" + sentence[idx+len(answer):]
	}
	return strings.TrimRight(sentence, " ") + " [" + answer + "]"
}

func extractBracketed(text string) []string {
	var answers []string
	for {
		open := strings.IndexByte(text, '[')
		if open < 0 {
			break
		}
		closeIdx := strings.IndexByte(text[open:], ']')
		if closeIdx < 0 {
			break
		}
		token := strings.TrimSpace(text[open+1 : open+closeIdx])
		if token != "" {
			answers = append(answers, token)
		}
		text = text[open+closeIdx+1:]
	}
	return answers
}

// ── open_question ──────────────────────────────────────────

const defaultGuidance = "A complete answer names the main idea, supports it with at least one example, and explains the reasoning in the student's own words."

func repairOpenQuestion(spec models.StepSpec, raw map[string]any) (models.StepPayload, error) {
	question := rawString(raw, "question", "prompt", "text")
	if question == "" {
		question = fmt.Sprintf("In your own words, explain: %s", spec.Focus)
	}
	guidance := rawString(raw, "guidance", "rubric", "expected_answer")
	if guidance == "" {
		guidance = defaultGuidance
	}
	return &models.OpenQuestion{
		Question:    question,
		Guidance:    guidance,
		Scaffolding: scaffoldingFrom(raw),
	}, nil
}

// ── memory_game ────────────────────────────────────────────

var memoryPairKeys = [][2]string{
	{"term", "definition"},
	{"front", "back"},
	{"word", "meaning"},
	{"term", "match"},
	{"left", "right"},
}

func repairMemoryGame(spec models.StepSpec, raw map[string]any) (models.StepPayload, error) {
	var pairs []models.TermDefinition

	for _, pm := range rawMapSlice(raw, "pairs", "cards", "terms", "matches") {
		for _, keys := range memoryPairKeys {
			term := rawString(pm, keys[0])
			def := rawString(pm, keys[1])
			if term != "" && def != "" {
				pairs = append(pairs, models.TermDefinition{Term: term, Definition: def})
				break
			}
		}
	}

	// Parallel array form.
	if len(pairs) < 2 {
		terms := rawStringSlice(raw, "terms", "words")
		defs := rawStringSlice(raw, "definitions", "meanings")
		for i := 0; i < len(terms) && i < len(defs); i++ {
			pairs = append(pairs, models.TermDefinition{Term: terms[i], Definition: defs[i]})
		}
	}

	if len(pairs) < 2 {
		return nil, &StructuralViolation{Kind: models.KindMemoryGame, Reason: fmt.Sprintf("need >=2 pairs, got %d", len(pairs))}
	}

	instruction := rawString(raw, "instruction", "prompt")
	if instruction == "" {
		instruction = "Find the matching pairs."
	}

	return &models.MemoryGame{
		Instruction: instruction,
		Pairs:       pairs,
		Scaffolding: scaffoldingFrom(raw),
	}, nil
}

// ── shared extraction helpers ──────────────────────────────

func scaffoldingFrom(raw map[string]any) models.Scaffolding {
	hints := rawStringSlice(raw, "hints", "hint")
	if hints == nil {
		hints = []string{}
	}
	return models.Scaffolding{
		Teach: rawString(raw, "teach_content", "teaching", "explanation_text"),
		Hints: hints,
	}
}

func rawString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
		case bool:
			return fmt.Sprintf("%t", v)
		}
	}
	return ""
}

func rawInt(raw map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		if f, ok := raw[key].(float64); ok {
			return int(f), true
		}
	}
	return 0, false
}

// rawStringSlice returns the first key that yields a list, with every
// scalar element string-normalized. Non-string scalars are formatted;
// nested objects are skipped.
func rawStringSlice(raw map[string]any, keys ...string) []string {
	for _, key := range keys {
		if list, ok := raw[key].([]any); ok {
			if out := anySlice(list); len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func anySlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		switch e := item.(type) {
		case string:
			if s := strings.TrimSpace(e); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", e), "0"), "."))
		case bool:
			out = append(out, fmt.Sprintf("%t", e))
		}
	}
	return out
}

func rawMapSlice(raw map[string]any, keys ...string) []map[string]any {
	for _, key := range keys {
		list, ok := raw[key].([]any)
		if !ok {
			continue
		}
		var out []map[string]any
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
