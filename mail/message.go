// ABOUTME: Minimal RFC 2822 message encoding and Gmail payload decoding
// ABOUTME: Builds base64url raw messages and extracts headers and text bodies
package mail

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"google.golang.org/api/gmail/v1"
)

// BuildRawMessage returns the base64url-encoded message Gmail expects in
// Message.Raw.
func BuildRawMessage(fromName, fromEmail, to, subject, body string) string {
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), fromEmail)
	}

	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}
	return base64.URLEncoding.EncodeToString([]byte(strings.Join(lines, "\r\n")))
}

// toMailMessage reduces a full-format Gmail message to headers and text body.
func toMailMessage(msg *gmail.Message) *models.MailMessage {
	out := &models.MailMessage{ID: msg.Id, Headers: make(map[string]string)}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		key := strings.ToLower(h.Name)
		if prev, ok := out.Headers[key]; ok {
			out.Headers[key] = prev + ", " + h.Value
			continue
		}
		out.Headers[key] = h.Value
	}
	out.Body = extractText(msg.Payload)
	return out
}

// extractText concatenates the root body and every text/plain part at any depth.
func extractText(payload *gmail.MessagePart) string {
	var b strings.Builder
	if payload.Body != nil && payload.Body.Data != "" {
		b.WriteString(decodeBody(payload.Body.Data))
	}
	collectPlainText(payload.Parts, &b)
	return b.String()
}

func collectPlainText(parts []*gmail.MessagePart, b *strings.Builder) {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			b.WriteString(decodeBody(part.Body.Data))
		}
		collectPlainText(part.Parts, b)
	}
}

// decodeBody accepts padded or unpadded base64url, falling back to standard base64.
func decodeBody(data string) string {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return string(decoded)
		}
	}
	return ""
}
