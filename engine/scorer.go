// ABOUTME: Contact scorer ranking job titles for outreach
// ABOUTME: Ordered keyword tiers, first matching tier wins
package engine

import "strings"

type scoreTier struct {
	score    int
	keywords []string
}

// Tier order is significant: a title matching several tiers takes the first.
var scoreTiers = []scoreTier{
	{95, []string{"creator", "influencer", "ugc", "affiliate", "partnership"}},
	{100, []string{"cmo", "chief marketing", "vp marketing", "vp of marketing", "head of marketing"}},
	{90, []string{"vp digital", "vp ecommerce", "vp e-commerce", "head of ecommerce", "head of digital", "head of growth"}},
	{70, []string{"brand", "content", "communications", "comms"}},
	{60, []string{"ceo", "founder", "co-founder", "president", "owner"}},
	{30, []string{"manager", "coordinator", "specialist"}},
}

// BaselineScore is assigned to titles that match no tier, including empty ones.
const BaselineScore = 10

// Score ranks a job title. It is pure and never fails.
func Score(title string) int {
	t := strings.ToLower(title)
	for _, tier := range scoreTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(t, kw) {
				return tier.score
			}
		}
	}
	return BaselineScore
}
