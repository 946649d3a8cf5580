package moderation

import (
	"fmt"
	"strings"

	"github.com/clearpath/triage/internal/triage"
)

// systemPrompt fixes the taxonomy and the response contract for both call
// kinds. The categories carry priority hints so the model resolves
// multi-category content toward the most urgent concern.
const systemPrompt = `You are a content safety analyst for a learning platform. Analyze learner-written text for safety concerns using this taxonomy:

- self_harm: suicidal ideation, self-injury, wanting to die (priority: highest)
- violence: threats, plans to harm others, weapon mentions (priority: high)
- distress: severe emotional distress, hopelessness, crisis language (priority: high)
- trauma: disclosure of abuse, neglect, or unsafe environments (priority: high)
- inappropriate: sexual content, harassment, hate speech (priority: medium)

Respond with JSON only, no prose and no code fences. Each verdict must have exactly these fields:
{"is_flagged": bool, "severity": "low"|"medium"|"high"|"critical", "flagged_reasons": [string], "confidence_score": number 0..1, "suggested_actions": [string]}

Use severity "low" with is_flagged false for content with no safety concern.`

// singleUserPrompt builds the immediate-path prompt for one item. The
// response must be a single verdict object.
func singleUserPrompt(content, contentContext string) string {
	var b strings.Builder
	b.WriteString("Analyze this single submission and return one verdict object.\n\n")
	fmt.Fprintf(&b, "Context: %s\n", labelOrGeneral(contentContext))
	fmt.Fprintf(&b, "Content:\n%s\n", content)
	return b.String()
}

// batchUserPrompt enumerates every item in append order. The response must
// be a JSON array with one verdict per item, in the same order — verdicts
// are interpreted positionally.
func batchUserPrompt(items []triage.BatchItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these %d submissions and return a JSON array of exactly %d verdict objects, one per item, in the same order.\n", len(items), len(items))
	for i, item := range items {
		fmt.Fprintf(&b, "\n--- Item %d ---\n", i+1)
		fmt.Fprintf(&b, "Context: %s\n", labelOrGeneral(item.Context))
		fmt.Fprintf(&b, "Content:\n%s\n", item.Content)
	}
	return b.String()
}

func labelOrGeneral(contentContext string) string {
	if strings.TrimSpace(contentContext) == "" {
		return "general"
	}
	return contentContext
}
