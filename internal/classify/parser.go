package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParsedResponse is the typed triple extracted from a model reply.
type ParsedResponse struct {
	Label      Label
	Confidence float64
	Reasoning  string

	// Fallback is true when the structured fields could not be found and
	// the label came from the keyword scan over the full response text.
	Fallback bool
}

// DefaultReasoningLimit bounds the reasoning text kept from a response.
const DefaultReasoningLimit = 400

var (
	classificationFieldRe = regexp.MustCompile(`(?i)Classification:\s*(.+)`)
	confidenceFieldRe     = regexp.MustCompile(`(?i)Confidence:\s*([0-9.]+)`)
	reasoningFieldRe      = regexp.MustCompile(`(?is)Reasoning:\s*(.+)`)
)

// labelPhrases maps response phrases to labels, most specific first. Order
// matters: "to do" must be checked before "done" would ever match inside
// other words, and "awaiting reply" before the bare "awaiting".
var labelPhrases = []struct {
	phrase string
	label  Label
}{
	{"to do", LabelToDo},
	{"todo", LabelToDo},
	{"awaiting reply", LabelAwaitingReply},
	{"awaiting", LabelAwaitingReply},
	{"fyi", LabelFYI},
	{"done", LabelDone},
	{"spam", LabelSpam},
	{"history", LabelHistory},
}

// ParseResponse extracts a (label, confidence, reasoning) triple from raw
// model output. The primary strategy looks for the three labeled fields the
// prompt requests; when no Classification field is present the whole
// lowercased response is scanned for label keywords instead, with
// confidence pinned at 0.5. ParseResponse never fails: missing or
// malformed fields degrade to FYI / 0.5 / a note about what was missing,
// so callers always receive a structurally valid result.
func ParseResponse(raw string, reasoningLimit int) ParsedResponse {
	if reasoningLimit <= 0 {
		reasoningLimit = DefaultReasoningLimit
	}

	m := classificationFieldRe.FindStringSubmatch(raw)
	if m == nil {
		return keywordFallback(raw, "no classification field in response")
	}

	parsed := ParsedResponse{
		Label:      matchLabel(m[1], LabelFYI),
		Confidence: 0.5,
		Reasoning:  "Unable to parse classification response",
	}

	if cm := confidenceFieldRe.FindStringSubmatch(raw); cm != nil {
		if v, err := strconv.ParseFloat(cm[1], 64); err == nil {
			parsed.Confidence = clamp01(v)
		}
	}

	if rm := reasoningFieldRe.FindStringSubmatch(raw); rm != nil {
		parsed.Reasoning = truncate(collapseWhitespace(rm[1]), reasoningLimit)
	}

	return parsed
}

// keywordFallback scans the full response for label phrases in no
// particular structure. Used when the structured reply format is absent.
func keywordFallback(raw, note string) ParsedResponse {
	return ParsedResponse{
		Label:      matchLabel(raw, LabelFYI),
		Confidence: 0.5,
		Reasoning:  fmt.Sprintf("Fallback parsing: %s", note),
		Fallback:   true,
	}
}

// matchLabel finds the first label phrase contained in text,
// case-insensitively, returning def when nothing matches.
func matchLabel(text string, def Label) Label {
	lower := strings.ToLower(text)
	for _, lp := range labelPhrases {
		if strings.Contains(lower, lp.phrase) {
			return lp.label
		}
	}
	return def
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// truncate shortens s to at most limit bytes, backing up to a rune
// boundary so the cut never leaves a partial UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
