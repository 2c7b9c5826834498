// Package classify assigns a content type to assistant responses using
// structural heuristics, not NLP.
//
// Evaluation order is significant: poem is checked before code, code before
// story, story before explanation, and the first match wins. Creative
// content is biased first because it drives the most user-visible memory
// failures (line-counting questions against a poem).
package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/promptpad/memoryd/internal/model"
)

const (
	poemMinLines    = 3
	poemMaxLines    = 19
	poemMaxLineLen  = 80
	poemShortLine   = 50
	explanationSize = 400
	maxTopics       = 10
	minTokenLen     = 3
)

// codePatterns are the syntactic shapes that mark a response as code.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bfunction\s+\w+\s*\(`),
	regexp.MustCompile(`\bdef\s+\w+\s*\(`),
	regexp.MustCompile(`\bclass\s+\w+`),
	regexp.MustCompile(`\bconst\s+\w+\s*=`),
	regexp.MustCompile(`\blet\s+\w+\s*=`),
	regexp.MustCompile(`\bfunc\s+\w+\s*\(`),
	regexp.MustCompile(`\w+\.\w+\(`),
	regexp.MustCompile(`\b(?:if|for|while)\s*\(.*\)\s*\{`),
	regexp.MustCompile("```"),
}

// codeTokens disqualify a response from the poem heuristic outright.
var codeTokens = []string{"function", "const "}

// storyMarkers flag narrative prose.
var storyMarkers = []string{
	"once upon a time",
	"chapter ",
	"the end.",
	"long ago",
}

// explanationMarkers are discourse phrases that flag explanatory prose.
var explanationMarkers = []string{
	"this means",
	"for example",
	"the reason is",
	"in other words",
	"essentially",
}

// Classify assigns a single content type to a response body.
func Classify(response string) model.ContentType {
	if looksLikePoem(response) {
		return model.ContentPoem
	}
	if looksLikeCode(response) {
		return model.ContentCode
	}
	if looksLikeStory(response) {
		return model.ContentStory
	}
	if looksLikeExplanation(response) {
		return model.ContentExplanation
	}
	return model.ContentGeneral
}

func looksLikePoem(response string) bool {
	lower := strings.ToLower(response)
	for _, tok := range codeTokens {
		if strings.Contains(lower, tok) {
			return false
		}
	}

	var lines []string
	for _, line := range strings.Split(response, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < poemMinLines || len(lines) > poemMaxLines {
		return false
	}

	hasShort := false
	for _, line := range lines {
		if len(line) >= poemMaxLineLen {
			return false
		}
		if len(line) < poemShortLine {
			hasShort = true
		}
	}
	return hasShort
}

func looksLikeCode(response string) bool {
	for _, pat := range codePatterns {
		if pat.MatchString(response) {
			return true
		}
	}
	return false
}

func looksLikeStory(response string) bool {
	lower := strings.ToLower(response)
	for _, marker := range storyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func looksLikeExplanation(response string) bool {
	lower := strings.ToLower(response)
	for _, marker := range explanationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return len(response) > explanationSize
}

// stopWords are dropped during tokenization.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "your": {}, "that": {}, "this": {},
	"with": {}, "from": {}, "they": {}, "what": {}, "was": {}, "were": {},
	"have": {}, "has": {}, "had": {}, "about": {}, "would": {}, "could": {},
	"did": {}, "will": {}, "its": {}, "it's": {}, "just": {}, "wrote": {},
	"write": {}, "please": {}, "like": {}, "some": {}, "there": {},
}

var nonWord = regexp.MustCompile(`[^a-z0-9']+`)

// Tokenize lower-cases text, strips punctuation, and drops short tokens
// and stop words. Shared by topic extraction and relevance scoring so the
// two sides of a lookup agree on what a token is.
func Tokenize(text string) []string {
	raw := nonWord.Split(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.Trim(tok, "'")
		if len(tok) < minTokenLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// ExtractTopics returns the most frequent keyword tokens of an exchange,
// highest frequency first, capped at ten. Ties keep first-seen order.
func ExtractTopics(userMessage, assistantResponse string) []string {
	tokens := Tokenize(userMessage + " " + assistantResponse)

	counts := make(map[string]int)
	order := make(map[string]int)
	for i, tok := range tokens {
		counts[tok]++
		if _, seen := order[tok]; !seen {
			order[tok] = i
		}
	}

	unique := make([]string, 0, len(counts))
	for tok := range counts {
		unique = append(unique, tok)
	}
	sort.SliceStable(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return order[unique[i]] < order[unique[j]]
	})

	if len(unique) > maxTopics {
		unique = unique[:maxTopics]
	}
	return unique
}

// BuildMetadata derives the fast-filter scalars stored alongside a record.
func BuildMetadata(userMessage, assistantResponse string, t model.ContentType) model.RecordMetadata {
	return model.RecordMetadata{
		MessageLength:  len(userMessage),
		ResponseLength: len(assistantResponse),
		DetectedType:   t,
	}
}
