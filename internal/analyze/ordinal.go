package analyze

import (
	"regexp"
	"strconv"

	"github.com/promptpad/memoryd/internal/model"
)

// ordinalWords covers first through tenth. Numeric forms ("2", "2nd") are
// normalized by wordToInt.
var ordinalWords = map[string]int{
	"first":   1,
	"second":  2,
	"third":   3,
	"fourth":  4,
	"fifth":   5,
	"sixth":   6,
	"seventh": 7,
	"eighth":  8,
	"ninth":   9,
	"tenth":   10,
}

var (
	// "3rd line from the end", "second verse from the end", "line 2 from the end"
	fromEndPattern = regexp.MustCompile(
		`\b(?:(\w+)\s+(?:line|verse)|(?:line|verse)\s+(\w+))\s+from\s+the\s+(?:end|bottom)\b`)
	// "second to last line", "3rd from last"
	toLastPattern = regexp.MustCompile(
		`\b(\w+)\s+(?:to|from)\s+(?:the\s+)?last\b`)
	// "last line", "final verse"
	lastLinePattern = regexp.MustCompile(`\b(?:last|final)\s+(?:line|verse|word|sentence)\b`)
	// "line 4", "verse 2"
	lineNumberPattern = regexp.MustCompile(`\b(?:line|verse)\s+(\d+)\b`)
	// "4th line", "2nd verse", "second line"
	ordinalLinePattern = regexp.MustCompile(`\b(\w+)\s+(?:line|verse)\b`)

	numericOrdinal = regexp.MustCompile(`^(\d+)(?:st|nd|rd|th)?$`)
)

// parseLineTarget recognizes line-position phrasing and normalizes it to a
// number plus counting direction. "Last"/"final" becomes {1, from-end}.
// Every target carries an explanation string so downstream formatting can
// show the arithmetic instead of letting the generator silently guess.
func parseLineTarget(lower string) *model.LineTarget {
	if m := fromEndPattern.FindStringSubmatch(lower); m != nil {
		n := wordToInt(m[1])
		if n == 0 {
			n = wordToInt(m[2])
		}
		if n > 0 {
			return target(n, model.FromEnd)
		}
	}

	// "second to last" is the penultimate line: 2 counted from the end.
	if m := toLastPattern.FindStringSubmatch(lower); m != nil {
		if n := wordToInt(m[1]); n > 0 {
			return target(n, model.FromEnd)
		}
	}

	if lastLinePattern.MatchString(lower) {
		return target(1, model.FromEnd)
	}

	if m := lineNumberPattern.FindStringSubmatch(lower); m != nil {
		if n := wordToInt(m[1]); n > 0 {
			return target(n, model.FromStart)
		}
	}

	// The word before "line" is usually an article ("the line"), so scan
	// every match for one that parses as an ordinal.
	for _, m := range ordinalLinePattern.FindAllStringSubmatch(lower, -1) {
		if n := wordToInt(m[1]); n > 0 {
			return target(n, model.FromStart)
		}
	}

	return nil
}

func target(n int, pos model.LinePosition) *model.LineTarget {
	return &model.LineTarget{
		Number:      n,
		Position:    pos,
		Explanation: explainTarget(n, pos),
	}
}

// wordToInt maps "second", "2" and "2nd" to 2. Unrecognized words are 0.
func wordToInt(word string) int {
	if word == "" {
		return 0
	}
	if n, ok := ordinalWords[word]; ok {
		return n
	}
	if m := numericOrdinal.FindStringSubmatch(word); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
