package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/satwhiz/inboxtriage/internal/classify"
)

// HeaderValue extracts a header value from a Gmail message.
func HeaderValue(m *gmail.Message, header string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// MessagesFromThread converts a full-format Gmail thread into pipeline
// messages. Messages without a payload are skipped.
func MessagesFromThread(t *gmail.Thread) []classify.Message {
	if t == nil {
		return nil
	}

	msgs := make([]classify.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		if m == nil || m.Payload == nil {
			continue
		}
		msgs = append(msgs, classify.Message{
			ID:       m.Id,
			ThreadID: t.Id,
			From:     HeaderValue(m, "From"),
			To:       parseAddressList(HeaderValue(m, "To")),
			Cc:       parseAddressList(HeaderValue(m, "Cc")),
			Bcc:      parseAddressList(HeaderValue(m, "Bcc")),
			Subject:  HeaderValue(m, "Subject"),
			Body:     messageBody(m),
			Date:     messageDate(m),
			LabelIDs: m.LabelIds,
		})
	}
	return msgs
}

// parseAddressList splits a recipient header into individual addresses.
// RFC 5322 parsing is tried first; on failure the header is split on commas
// so malformed but readable headers still yield something useful.
func parseAddressList(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}

	if addrs, err := mail.ParseAddressList(header); err == nil {
		out := make([]string, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, a.Address)
		}
		return out
	}

	var out []string
	for _, part := range strings.Split(header, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// messageDate resolves a message timestamp. The API's internal date is
// authoritative; the Date header is the fallback for messages that lack it.
func messageDate(m *gmail.Message) time.Time {
	if m.InternalDate > 0 {
		return time.UnixMilli(m.InternalDate).UTC()
	}
	if header := HeaderValue(m, "Date"); header != "" {
		if t, err := mail.ParseDate(header); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// messageBody extracts the plain-text body of a message, falling back to
// the HTML part when no plain-text part exists.
func messageBody(m *gmail.Message) string {
	if body := findBody(m.Payload, "text/plain"); body != "" {
		return body
	}
	return findBody(m.Payload, "text/html")
}

func findBody(payload *gmail.MessagePart, mimeType string) string {
	var data string
	walkParts(payload, func(part *gmail.MessagePart) {
		if data == "" && part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
			data = part.Body.Data
		}
	})
	if data == "" {
		return ""
	}
	return decodeBody(data)
}

// decodeBody decodes base64url body data, retrying with standard base64
// for the occasional message encoded that way.
func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// walkParts recursively walks through message parts.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}
