// Package analyze decides whether an incoming message references earlier
// conversation content and, if so, extracts a structured query from it.
//
// Detection runs the message against a declarative table of weighted
// pattern categories. Each matching category contributes its fixed weight
// to a confidence score, capped at 1.0. Line references carry the highest
// weight since they are the most failure-prone case.
package analyze

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/promptpad/memoryd/internal/model"
)

// DetectionThreshold is the confidence above which a message is treated
// as a memory reference. Tunable; keep in sync with the rule weights below.
const DetectionThreshold = 0.3

// TypeHintBonus is added when the message names a content type outright.
const TypeHintBonus = 0.15

// Category labels one group of detection patterns.
type Category string

const (
	CategoryContent       Category = "content"
	CategoryTemporal      Category = "temporal"
	CategoryContinuity    Category = "continuity"
	CategoryClarification Category = "clarification"
	CategoryLineReference Category = "line-reference"
)

// Rule is one weighted pattern category in the detection table.
type Rule struct {
	Category Category
	Weight   float64
	Patterns []*regexp.Regexp
}

// DetectionRules is the full detection table. A category fires at most
// once regardless of how many of its patterns match, so confidence is
// monotone in the set of matched categories.
var DetectionRules = []Rule{
	{
		Category: CategoryContent,
		Weight:   0.25,
		Patterns: compile(
			`\byou (?:wrote|made|created|generated|gave me)\b`,
			`\bthe (?:poem|code|function|story|example|explanation|one)\b`,
			`\bthat (?:poem|code|function|story|example|explanation)\b`,
			`\bwhat you (?:wrote|said|showed)\b`,
		),
	},
	{
		Category: CategoryTemporal,
		Weight:   0.2,
		Patterns: compile(
			`\b(?:earlier|before|previously|yesterday|last time)\b`,
			`\b(?:a (?:minute|moment|while)|moments?) ago\b`,
			`\bjust (?:now|wrote|made|said)\b`,
		),
	},
	{
		Category: CategoryContinuity,
		Weight:   0.2,
		Patterns: compile(
			`\b(?:that one|the same one|it again|the previous)\b`,
			`\b(?:continue|keep going|go on) (?:with|from)\b`,
			`\bback to (?:the|that|our)\b`,
		),
	},
	{
		Category: CategoryClarification,
		Weight:   0.25,
		Patterns: compile(
			`\bwouldn'?t (?:that|it) be\b`,
			`\b(?:actually|hold on|but wait|wait)\b`,
			`\bare you sure\b`,
			`\bi thought (?:you|it|that)\b`,
		),
	},
	{
		Category: CategoryLineReference,
		Weight:   0.4,
		Patterns: compile(
			`\b(?:line|verse|stanza)s?\b`,
			`\b(?:first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|last|final) (?:line|verse|word|sentence)\b`,
			`\b\d+(?:st|nd|rd|th)? (?:line|verse)\b`,
			`\bhow many lines\b`,
		),
	},
}

// typeHints maps a content-type keyword in the message to the hint it
// implies. "function" and "example" fold into their broader types.
var typeHints = []struct {
	word string
	t    model.ContentType
}{
	{"poem", model.ContentPoem},
	{"haiku", model.ContentPoem},
	{"code", model.ContentCode},
	{"function", model.ContentCode},
	{"script", model.ContentCode},
	{"story", model.ContentStory},
	{"explanation", model.ContentExplanation},
	{"example", model.ContentExplanation},
}

// followUpMarkers independently flag a clarifying follow-up.
var followUpMarkers = []string{
	"wouldn't that be",
	"wouldnt that be",
	"actually",
	"hold on",
	"but wait",
	"no wait",
	"are you sure",
}

var temporalHintPattern = regexp.MustCompile(
	`\b(yesterday|today|earlier|last time|just now|a minute ago|this morning)\b`)

// Detect scores a message against the detection table. Returns whether it
// crosses the threshold and the capped confidence. Empty or whitespace-only
// input is never a reference.
func Detect(message string) (bool, float64) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return false, 0
	}
	lower := strings.ToLower(trimmed)

	confidence := 0.0
	for _, rule := range DetectionRules {
		for _, pat := range rule.Patterns {
			if pat.MatchString(lower) {
				confidence += rule.Weight
				break
			}
		}
	}

	if hintType(lower) != "" {
		confidence += TypeHintBonus
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence > DetectionThreshold, confidence
}

// ExtractContentQuery builds the structured query for a message that was
// detected as a memory reference. prev is caller-supplied continuity; it is
// carried forward only when the message reads as a follow-up, so a
// clarification keeps pointing at the same content instead of re-resolving.
func ExtractContentQuery(message string, prev *model.PreviousContext) *model.StructuredQuery {
	lower := strings.ToLower(strings.TrimSpace(message))

	q := &model.StructuredQuery{
		RequestType:     model.RequestGeneral,
		ContentTypeHint: hintType(lower),
	}

	if line := parseLineTarget(lower); line != nil {
		q.RequestType = model.RequestLineSpecific
		q.Line = line
	}

	for _, marker := range followUpMarkers {
		if strings.Contains(lower, marker) {
			q.IsFollowUp = true
			break
		}
	}
	if q.IsFollowUp && prev != nil {
		q.Carried = prev
		if q.ContentTypeHint == "" {
			q.ContentTypeHint = prev.ContentType
		}
	}

	if m := temporalHintPattern.FindString(lower); m != "" {
		q.TemporalHint = m
	}

	return q
}

func hintType(lower string) model.ContentType {
	for _, hint := range typeHints {
		if strings.Contains(lower, hint.word) {
			return hint.t
		}
	}
	return ""
}

func explainTarget(n int, pos model.LinePosition) string {
	if pos == model.FromEnd {
		if n == 1 {
			return "the last line, counting backwards from the end"
		}
		return fmt.Sprintf("line %d counting backwards from the end", n)
	}
	return fmt.Sprintf("line %d counting down from the first line", n)
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
