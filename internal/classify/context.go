package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// ContextBuilder renders a thread's messages into a single transcript for
// the model prompt. Bodies are cleaned of quoted replies and signatures,
// and long bodies are compressed with extractive summarization so that the
// prompt stays bounded regardless of thread size.
type ContextBuilder struct {
	// MaxBodyChars is the body length above which extractive summarization
	// kicks in. Zero means the default of 300.
	MaxBodyChars int

	// SummarySentences is the number of sentences kept when summarizing.
	// Zero means the default of 2.
	SummarySentences int
}

const (
	defaultMaxBodyChars     = 300
	defaultSummarySentences = 2
)

// Sender roles in the transcript. The first message is the initiator;
// later messages are tagged by comparing senders with the previous message.
const (
	roleInitiator  = "INITIATOR"
	roleSameSender = "SAME_SENDER"
	roleResponder  = "RESPONDER"
)

var (
	quotedLineRe     = regexp.MustCompile(`(?m)^\s*>`)
	signatureBlockRe = regexp.MustCompile(`(?ms)^--\s*$.*`)
	blankRunsRe      = regexp.MustCompile(`\n\s*\n`)
	sentenceSplitRe  = regexp.MustCompile(`[.!?]+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// Build renders messages, which must already be sorted chronologically,
// into the transcript format the classification prompt expects. Each block
// carries an ordinal, a sender-role tag, the envelope headers, and the
// cleaned (possibly summarized) body. Blocks after the first are separated
// by a marker stating which earlier messages the block builds upon.
func (b ContextBuilder) Build(msgs []Message) string {
	var parts []string

	for i, m := range msgs {
		role := roleInitiator
		if i > 0 {
			if m.From == msgs[i-1].From {
				role = roleSameSender
			} else {
				role = roleResponder
			}
		}

		content := CleanBody(m.Body)
		if len(content) > b.maxBodyChars() {
			content = ExtractiveSummary(content, b.summarySentences())
		}

		block := fmt.Sprintf(`
EMAIL %d (%s):
From: %s
To: %s
Subject: %s
Date: %s
Content: %s
`, i+1, role, m.From, strings.Join(m.To, ", "), m.Subject, m.Date.Format("2006-01-02 15:04"), content)
		parts = append(parts, block)

		if i > 0 {
			parts = append(parts, fmt.Sprintf("\n--- EMAIL %d builds upon EMAIL(S) 1-%d ---\n", i+1, i))
		}
	}

	return strings.Join(parts, "\n")
}

func (b ContextBuilder) maxBodyChars() int {
	if b.MaxBodyChars > 0 {
		return b.MaxBodyChars
	}
	return defaultMaxBodyChars
}

func (b ContextBuilder) summarySentences() int {
	if b.SummarySentences > 0 {
		return b.SummarySentences
	}
	return defaultSummarySentences
}

// CleanBody strips quoted-reply lines and trailing signature blocks from an
// email body and collapses runs of blank lines.
func CleanBody(body string) string {
	if body == "" {
		return ""
	}

	// Drop the signature block ("-- " marker through end of body).
	body = signatureBlockRe.ReplaceAllString(body, "")

	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if quotedLineRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	body = strings.Join(kept, "\n")

	body = blankRunsRe.ReplaceAllString(body, "\n\n")
	return strings.TrimSpace(body)
}

// ExtractiveSummary compresses text to at most n sentences by selecting
// positionally: the first sentence for n=1, first and last for n=2, and
// first, middle, and last for n>=3. Text with n or fewer sentences is
// returned unchanged. This is deliberately crude; its only job is to bound
// prompt size.
func ExtractiveSummary(text string, n int) string {
	if text == "" {
		return ""
	}
	if n < 1 {
		n = 1
	}

	raw := sentenceSplitRe.Split(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) <= n {
		return text
	}

	switch n {
	case 1:
		return sentences[0] + "."
	case 2:
		return sentences[0] + ". " + sentences[len(sentences)-1] + "."
	default:
		mid := len(sentences) / 2
		return sentences[0] + ". " + sentences[mid] + ". " + sentences[len(sentences)-1] + "."
	}
}
