// ABOUTME: Hard-bounce address extraction from delivery-failure notifications
// ABOUTME: Prefers X-Failed-Recipients, falls back to known provider phrasings
package mail

import (
	"strings"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"github.com/wasilibs/go-re2"
)

// FailureQuery is the Gmail search used to find delivery-failure notifications.
const FailureQuery = "from:mailer-daemon"

// bouncePatterns capture the failed recipient in group 1. Coverage is
// heuristic; wording outside these forms is missed.
var bouncePatterns = []*re2.Regexp{
	re2.MustCompile(`(?i)wasn['’]?t delivered to\s+(\S+@\S+\.\S+)`),
	re2.MustCompile(`(?i)delivery to.*?(\S+@\S+\.\S+).*?failed`),
	re2.MustCompile(`(?i)rejected.*?(\S+@\S+\.\S+)`),
	re2.MustCompile(`(?i)could not be delivered to\s+(\S+@\S+\.\S+)`),
	re2.MustCompile(`(?i)address not found.*?(\S+@\S+\.\S+)`),
	re2.MustCompile(`(?i)does not exist.*?(\S+@\S+\.\S+)`),
	re2.MustCompile(`(?i)(\S+@\S+\.\S+).*?address not found`),
}

// ignoredFragments mark addresses that belong to the notifier, not the recipient.
var ignoredFragments = []string{"mailer-daemon", "googlemail", "postmaster@"}

// ExtractBouncedAddresses returns the deduplicated failed recipients named in
// msg. The X-Failed-Recipients header wins over body text when present.
func ExtractBouncedAddresses(msg *models.MailMessage) []string {
	if msg == nil {
		return nil
	}

	var found []string
	if header := msg.Headers["x-failed-recipients"]; strings.TrimSpace(header) != "" {
		found = strings.Split(header, ",")
	} else {
		for _, pattern := range bouncePatterns {
			for _, m := range pattern.FindAllStringSubmatch(msg.Body, -1) {
				found = append(found, m[1])
			}
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, raw := range found {
		addr := NormalizeAddress(raw)
		if !plausibleAddress(addr) || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

// NormalizeAddress strips surrounding punctuation and lower-cases.
func NormalizeAddress(raw string) string {
	return models.NormalizeEmail(strings.Trim(strings.TrimSpace(raw), `<>.,;:'"()[]`))
}

func plausibleAddress(addr string) bool {
	at := strings.Index(addr, "@")
	if at <= 0 || at == len(addr)-1 || strings.Count(addr, "@") != 1 {
		return false
	}
	for _, frag := range ignoredFragments {
		if strings.Contains(addr, frag) {
			return false
		}
	}
	return true
}
