package generator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Recover extracts a JSON object from arbitrary completion text. It is
// total: any input yields either a map or nil, never a panic and never an
// error. nil is a normal outcome and means the downstream repair engine
// should synthesize a fallback.
//
// The recovery ladder, in fixed order:
//  1. strip code-fence markers and parse directly
//  2. isolate the first brace-balanced object (trailing prose is common)
//  3. apply the ordered repair set: trailing commas, bare keys, quotes
//  4. append missing closers once if braces are unbalanced
func Recover(raw string) map[string]any {
	cleaned := stripCodeFences(raw)

	if obj := tryParse(cleaned); obj != nil {
		return obj
	}

	candidate := extractObject(cleaned)
	if candidate == "" {
		return nil
	}
	if obj := tryParse(candidate); obj != nil {
		return obj
	}

	repaired := candidate
	for _, repair := range repairs {
		repaired = repair(repaired)
		if obj := tryParse(repaired); obj != nil {
			return obj
		}
	}

	if obj := tryParse(appendMissingClosers(repaired)); obj != nil {
		return obj
	}

	return nil
}

// tryParse returns the decoded object, or nil when the candidate is not a
// valid JSON object. gjson probes validity cheaply before unmarshalling.
func tryParse(candidate string) map[string]any {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || !gjson.Valid(candidate) {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil
	}
	return obj
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// extractObject returns the substring from the first '{' to its
// brace-depth-balanced '}'. A scanner, not a regex, so nested objects and
// braces inside string literals are handled. When the object never closes,
// the unbalanced tail is returned for the closer-appending stage.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)(\s*:)`)
	curlyQuotes     = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// repairs is the fixed ordered repair set. Each runs on the output of the
// previous one and the result is re-tried after every stage.
var repairs = []func(string) string{
	stripTrailingCommas,
	quoteBareKeys,
	normalizeQuotes,
}

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func quoteBareKeys(s string) string {
	return bareKeyRe.ReplaceAllString(s, `$1"$2"$3`)
}

// normalizeQuotes straightens typographic quotes and, when the candidate
// uses single quotes exclusively as delimiters, swaps them for double.
func normalizeQuotes(s string) string {
	s = curlyQuotes.Replace(s)
	if !strings.Contains(s, `"`) && strings.Contains(s, "'") {
		s = strings.ReplaceAll(s, "'", `"`)
	}
	return s
}

// appendMissingClosers closes an unterminated string literal and appends
// the unmatched closers in reverse nesting order, exactly once.
func appendMissingClosers(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(strings.TrimSpace(s), ","))
	if inString {
		sb.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String()
}
