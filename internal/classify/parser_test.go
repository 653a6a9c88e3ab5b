package classify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestParseResponseStructured(t *testing.T) {
	tests := []struct {
		name               string
		raw                string
		expectedLabel      Label
		expectedConfidence float64
		expectedReasoning  string
	}{
		{
			name:               "complete structured response",
			raw:                "Classification: Done\nConfidence: 0.95\nReasoning: conversation concluded",
			expectedLabel:      LabelDone,
			expectedConfidence: 0.95,
			expectedReasoning:  "conversation concluded",
		},
		{
			name:               "to do with explicit space",
			raw:                "Classification: To Do\nConfidence: 0.8\nReasoning: user must respond",
			expectedLabel:      LabelToDo,
			expectedConfidence: 0.8,
			expectedReasoning:  "user must respond",
		},
		{
			name:               "awaiting reply",
			raw:                "Classification: Awaiting Reply\nConfidence: 0.7\nReasoning: waiting on counterparty",
			expectedLabel:      LabelAwaitingReply,
			expectedConfidence: 0.7,
			expectedReasoning:  "waiting on counterparty",
		},
		{
			name:               "lowercase field names",
			raw:                "classification: spam\nconfidence: 0.9\nreasoning: promotional newsletter",
			expectedLabel:      LabelSpam,
			expectedConfidence: 0.9,
			expectedReasoning:  "promotional newsletter",
		},
		{
			name:               "missing confidence defaults to 0.5",
			raw:                "Classification: FYI\nReasoning: status update only",
			expectedLabel:      LabelFYI,
			expectedConfidence: 0.5,
			expectedReasoning:  "status update only",
		},
		{
			name:               "confidence above one is clamped",
			raw:                "Classification: History\nConfidence: 1.5\nReasoning: dormant thread",
			expectedLabel:      LabelHistory,
			expectedConfidence: 1.0,
			expectedReasoning:  "dormant thread",
		},
		{
			name:               "unrecognized label falls back to fyi",
			raw:                "Classification: Banana\nConfidence: 0.6\nReasoning: no idea",
			expectedLabel:      LabelFYI,
			expectedConfidence: 0.6,
			expectedReasoning:  "no idea",
		},
		{
			name:               "multiline reasoning is collapsed",
			raw:                "Classification: Done\nConfidence: 0.9\nReasoning: first line\nsecond   line",
			expectedLabel:      LabelDone,
			expectedConfidence: 0.9,
			expectedReasoning:  "first line second line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseResponse(tt.raw, 0)
			assert.Equal(t, tt.expectedLabel, parsed.Label)
			assert.InDelta(t, tt.expectedConfidence, parsed.Confidence, 0.0001)
			assert.Equal(t, tt.expectedReasoning, parsed.Reasoning)
			assert.False(t, parsed.Fallback)
		})
	}
}

func TestParseResponseKeywordFallback(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		expectedLabel Label
	}{
		{
			name:          "unstructured spam mention",
			raw:           "I think this is spam email, ignore it",
			expectedLabel: LabelSpam,
		},
		{
			name:          "todo keyword without field",
			raw:           "looks like a todo item for the user",
			expectedLabel: LabelToDo,
		},
		{
			name:          "awaiting keyword",
			raw:           "the sender is awaiting a response here",
			expectedLabel: LabelAwaitingReply,
		},
		{
			name:          "no keyword at all defaults to fyi",
			raw:           "I cannot make sense of this conversation",
			expectedLabel: LabelFYI,
		},
		{
			name:          "empty response",
			raw:           "",
			expectedLabel: LabelFYI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseResponse(tt.raw, 0)
			assert.Equal(t, tt.expectedLabel, parsed.Label)
			assert.InDelta(t, 0.5, parsed.Confidence, 0.0001)
			assert.True(t, parsed.Fallback)
			assert.Contains(t, parsed.Reasoning, "Fallback parsing")
		})
	}
}

func TestParseResponseReasoningTruncation(t *testing.T) {
	long := strings.Repeat("a", 450)
	raw := "Classification: Done\nConfidence: 0.9\nReasoning: " + long

	parsed := ParseResponse(raw, 0)

	assert.True(t, strings.HasSuffix(parsed.Reasoning, "..."))
	assert.Len(t, parsed.Reasoning, DefaultReasoningLimit+3)

	// A custom limit applies in place of the default.
	parsed = ParseResponse(raw, 50)
	assert.Len(t, parsed.Reasoning, 53)
}

func TestParseResponseTruncationKeepsValidUTF8(t *testing.T) {
	// 4 bytes per rune, so a 10-byte limit lands mid-rune.
	long := strings.Repeat("📧", 20)
	raw := "Classification: Done\nConfidence: 0.9\nReasoning: " + long

	parsed := ParseResponse(raw, 10)

	assert.True(t, utf8.ValidString(parsed.Reasoning))
	assert.Equal(t, strings.Repeat("📧", 2)+"...", parsed.Reasoning)
}

func TestParseResponseMissingReasoning(t *testing.T) {
	parsed := ParseResponse("Classification: Done\nConfidence: 0.9", 0)

	assert.Equal(t, LabelDone, parsed.Label)
	assert.Equal(t, "Unable to parse classification response", parsed.Reasoning)
}
