// ABOUTME: Parsing of generated outreach text into subject and body
// ABOUTME: Accepts JSON, a leading "Subject:" line, or bare text with a default subject
package generator

import (
	"encoding/json"
	"strings"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

// DefaultSubject is used when the model output carries no subject.
const DefaultSubject = "Quick question about creator costs"

// ParseDraft splits model output into a subject and body.
func ParseDraft(text string) models.Draft {
	text = strings.TrimSpace(text)

	if draft, ok := parseJSONDraft(text); ok {
		return draft
	}

	first, rest, _ := strings.Cut(text, "\n")
	if idx := strings.Index(strings.ToLower(first), "subject:"); idx >= 0 {
		subject := strings.TrimSpace(first[idx+len("subject:"):])
		subject = strings.Trim(subject, "*")
		if subject != "" {
			return models.Draft{Subject: strings.TrimSpace(subject), Body: strings.TrimSpace(rest)}
		}
	}

	return models.Draft{Subject: DefaultSubject, Body: text}
}

func parseJSONDraft(text string) (models.Draft, bool) {
	// Models sometimes fence JSON in a code block
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(text, "```json"), "```"), "```"))
	if !strings.HasPrefix(trimmed, "{") {
		return models.Draft{}, false
	}

	var draft models.Draft
	if err := json.Unmarshal([]byte(trimmed), &draft); err != nil {
		return models.Draft{}, false
	}
	draft.Subject = strings.TrimSpace(draft.Subject)
	draft.Body = strings.TrimSpace(draft.Body)
	if draft.Body == "" {
		return models.Draft{}, false
	}
	if draft.Subject == "" {
		draft.Subject = DefaultSubject
	}
	return draft, true
}
