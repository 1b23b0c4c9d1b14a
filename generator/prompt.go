// ABOUTME: Prompt construction for outreach drafts
// ABOUTME: Builds the system and user messages sent to the model for one lead/contact pair
package generator

import (
	"fmt"
	"strings"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
)

const systemPrompt = `You write short cold outreach emails for Onsite Affiliate.

Onsite Affiliate lets a brand run Amazon's influencer commission model on its own site:
creators produce UGC video for product pages at zero upfront cost and are paid
commission only on the sales they drive.

Keep every email under 90 words, casual, and address the recipient by first name only.
Respond with JSON only: {"subject": "...", "body": "..."}`

// buildPrompt renders the user message for one draft request.
func buildPrompt(req models.DraftRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a casual outreach email for %s.\n", req.Website)
	if req.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", req.Industry)
	}
	if req.FirstName != "" {
		fmt.Fprintf(&b, "Contact first name: %s\n", req.FirstName)
	} else {
		b.WriteString("Contact first name: unknown, use a friendly generic greeting\n")
	}
	if req.ResearchExcerpt != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.ResearchExcerpt)
	}
	return b.String()
}
