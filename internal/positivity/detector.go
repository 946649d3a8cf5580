// Package positivity implements the lexicon-based positive-language
// detector run by the independent sentiment consumer. It is decoupled from
// the triage engine entirely: its verdicts feed encouragement features,
// never safety routing.
package positivity

import (
	"strings"
	"unicode"
)

// positiveWords are single-token signals, matched on word boundaries.
var positiveWords = map[string]bool{
	"accomplished": true,
	"confident":    true,
	"excited":      true,
	"grateful":     true,
	"great":        true,
	"happy":        true,
	"improved":     true,
	"learned":      true,
	"motivated":    true,
	"proud":        true,
	"thankful":     true,
	"understand":   true,
}

// positivePhrases are multi-word signals, matched as substrings of the
// lower-cased content.
var positivePhrases = []string{
	"looking forward to",
	"made progress",
	"feel good about",
	"went really well",
	"thank you",
	"figured it out",
}

// matchThreshold is how many distinct signals make content "positive".
const matchThreshold = 1

// Result is one positivity verdict.
type Result struct {
	Positive bool     `json:"positive"`
	Score    float64  `json:"score"` // matched signals / total signals, capped at 1
	Terms    []string `json:"terms"` // matched words and phrases, in match order
}

// Detector scores content against the positive lexicon.
type Detector struct{}

// NewDetector returns a ready detector. The lexicon is fixed at compile
// time; the constructor keeps the dependency explicit for callers.
func NewDetector() *Detector {
	return &Detector{}
}

// Score evaluates content and returns which positive signals matched.
func (d *Detector) Score(content string) Result {
	lowered := strings.ToLower(content)

	var terms []string
	seen := make(map[string]bool)

	for _, token := range tokenize(lowered) {
		if positiveWords[token] && !seen[token] {
			seen[token] = true
			terms = append(terms, token)
		}
	}
	for _, phrase := range positivePhrases {
		if strings.Contains(lowered, phrase) && !seen[phrase] {
			seen[phrase] = true
			terms = append(terms, phrase)
		}
	}

	total := len(positiveWords) + len(positivePhrases)
	score := float64(len(terms)) / float64(total)
	if score > 1 {
		score = 1
	}

	return Result{
		Positive: len(terms) >= matchThreshold,
		Score:    score,
		Terms:    terms,
	}
}

// tokenize splits content into lower-cased word tokens, stripping
// punctuation so "proud!" still matches "proud".
func tokenize(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
