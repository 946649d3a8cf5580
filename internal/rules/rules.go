// Package rules provides the local obvious-flag pre-filter for learner
// submissions. It screens free text against fixed pattern tiers for
// self-harm, abuse, and severe-distress phrasing so that dangerous content
// is escalated immediately instead of waiting in a batch.
//
// The tiers are deliberately tuned for recall over precision: a false
// positive only costs one extra moderation call, while a false negative
// would delay a dangerous message. A match here is a guarantee, not a
// guess — the final verdict still comes from the moderation model.
package rules

import (
	"regexp"
	"strings"
)

// Severity labels produced by the tier table, ordered strongest first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// Verdict is the outcome of checking one piece of content against the
// tier table. When Obvious is false the remaining fields are zero.
type Verdict struct {
	Obvious          bool
	Severity         string
	Confidence       float64
	Reasons          []string
	SuggestedActions []string
}

// Compiled pattern groups, one per tier. Compiled once at package init and
// reused for every call, making them safe for concurrent use. All patterns
// are matched against lower-cased content.
var (
	criticalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(kill(ing)?|hurt(ing)?|harm(ing)?)\s+myself\b`),
		regexp.MustCompile(`\bsuicid(e|al)\b`),
		regexp.MustCompile(`\bend(ing)?\s+(my|it\s+all|my\s+own)\s*(life)?\b`),
		regexp.MustCompile(`\b(want|wanted|wish(ed)?)\s+to\s+(die|be\s+dead|disappear\s+forever)\b`),
		regexp.MustCompile(`\bself[\s-]?harm\b`),
		regexp.MustCompile(`\bcut(ting)?\s+myself\b`),
		regexp.MustCompile(`\bbetter\s+off\s+(dead|without\s+me)\b`),
		regexp.MustCompile(`\bno\s+reason\s+to\s+(live|be\s+alive|go\s+on)\b`),
		regexp.MustCompile(`\btake\s+my\s+(own\s+)?life\b`),
	}

	highPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(hit|hits|beat|beats|punch(es)?|chok(es|ed))\s+me\b`),
		regexp.MustCompile(`\b(hurt|kill|attack)\s+(him|her|them|you|someone|everybody|everyone)\b`),
		regexp.MustCompile(`\babus(e|ed|ing|ive)\b`),
		regexp.MustCompile(`\b(threaten(s|ed|ing)?|threats?)\b`),
		regexp.MustCompile(`\bafraid\s+(of\s+)?(him|her|them|to\s+go\s+home)\b`),
		regexp.MustCompile(`\bnot\s+safe\s+(at\s+home|here|anywhere)\b`),
		regexp.MustCompile(`\b(touch(es|ed)?\s+me|touched\s+me)\s+(inappropriately|without)\b`),
		regexp.MustCompile(`\bbring(ing)?\s+a\s+(gun|knife|weapon)\b`),
	}

	mediumPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(hopeless|worthless|pointless)\b`),
		regexp.MustCompile(`\bnobody\s+(cares|would\s+(notice|miss\s+me))\b`),
		regexp.MustCompile(`\bno\s+one\s+(cares|understands|would\s+(notice|miss\s+me))\b`),
		regexp.MustCompile(`\bhate\s+(myself|my\s+life)\b`),
		regexp.MustCompile(`\bcan'?t\s+(go\s+on|take\s+(it|this)\s+anymore|cope)\b`),
		regexp.MustCompile(`\b(completely|totally|so)\s+alone\b`),
		regexp.MustCompile(`\bgiv(e|ing)\s+up\s+on\s+(everything|life|myself)\b`),
		regexp.MustCompile(`\b(depress(ed|ion)|miserable)\b`),
		regexp.MustCompile(`\bcry(ing)?\s+(myself\s+to\s+sleep|every\s+(day|night))\b`),
	}
)

// tier pairs a pattern group with the fixed verdict it produces.
// Order matters: the first tier with any match wins, so critical is
// always checked before high, and high before medium.
type tier struct {
	severity         string
	confidence       float64
	patterns         []*regexp.Regexp
	reasons          []string
	suggestedActions []string
}

var tiers = []tier{
	{
		severity:   SeverityCritical,
		confidence: 0.95,
		patterns:   criticalPatterns,
		reasons:    []string{"self-harm or suicidal language detected"},
		suggestedActions: []string{
			"notify counselor immediately",
			"provide crisis resources to the learner",
		},
	},
	{
		severity:   SeverityHigh,
		confidence: 0.90,
		patterns:   highPatterns,
		reasons:    []string{"abuse, violence, or threat language detected"},
		suggestedActions: []string{
			"escalate to safeguarding staff",
			"review recent submissions from the same learner",
		},
	},
	{
		severity:   SeverityMedium,
		confidence: 0.80,
		patterns:   mediumPatterns,
		reasons:    []string{"severe distress or hopelessness language detected"},
		suggestedActions: []string{
			"flag for counselor review",
			"monitor the learner's upcoming submissions",
		},
	},
}

// Engine evaluates content against the tier table.
type Engine struct{}

// NewEngine returns a ready rule engine. The pattern table is fixed at
// compile time; the constructor exists so callers hold an explicit
// dependency rather than reaching for package state.
func NewEngine() *Engine {
	return &Engine{}
}

// Check evaluates content against the tiers in severity order and returns
// the verdict of the first tier with any matching pattern. Content that
// matches no tier yields a zero-value (non-obvious) verdict.
func (e *Engine) Check(content string) Verdict {
	lowered := strings.ToLower(content)

	for _, t := range tiers {
		for _, p := range t.patterns {
			if p.MatchString(lowered) {
				return Verdict{
					Obvious:          true,
					Severity:         t.severity,
					Confidence:       t.confidence,
					Reasons:          append([]string(nil), t.reasons...),
					SuggestedActions: append([]string(nil), t.suggestedActions...),
				}
			}
		}
	}
	return Verdict{}
}
