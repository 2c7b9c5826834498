// Package rank orders candidate conversations by relevance to a query.
//
// The base score is a weighted token overlap plus flat bonuses for content
// type match and recency. On top of that a small ordered list of named
// boost rules handles the known failure-prone query shapes ("the poem you
// just wrote", line-counting against a fresh artifact, same-session
// scoping). Ordering uses the raw additive score so the dominant boosts
// actually dominate; the relevance reported to callers is clamped to [0,1].
package rank

import (
	"sort"
	"strings"
	"time"

	"github.com/promptpad/memoryd/internal/classify"
	"github.com/promptpad/memoryd/internal/model"
)

const (
	overlapWeight = 0.6
	typeBonus     = 0.3
	recencyBonus  = 0.1

	recencyWindow = 24 * time.Hour
	freshWindow   = time.Hour

	// tieWindow is how close two scores must be before the newer record
	// wins outright. Recency-qualified queries widen it.
	tieWindow     = 0.1
	wideTieWindow = 0.3
)

// Query carries everything the ranker needs for one call.
type Query struct {
	Text       string
	Structured *model.StructuredQuery
	SessionID  string // caller's current session; empty disables session scoping
	Now        time.Time
}

// Candidate is one scored record. Score is the raw additive value used for
// ordering; Relevance is the same value clamped to [0,1] for reporting.
type Candidate struct {
	Record    *model.ConversationRecord
	Score     float64
	Relevance float64
}

// BoostRule is one named special-case adjustment, applied additively after
// the base score. Rules are kept as an explicit ordered list so each one
// is independently testable.
type BoostRule struct {
	Name  string
	Apply func(q Query, rec *model.ConversationRecord) float64
}

// BoostRules is the authoritative rule list, applied in order.
var BoostRules = []BoostRule{
	{
		// "just wrote" / "you wrote" plus an explicit content-type word:
		// strongly prefer a matching type, more so when freshly created.
		Name: "named-recent-creation",
		Apply: func(q Query, rec *model.ConversationRecord) float64 {
			lower := strings.ToLower(q.Text)
			if !strings.Contains(lower, "just wrote") && !strings.Contains(lower, "you wrote") {
				return 0
			}
			hint := namedType(lower)
			if hint == "" || rec.ContentType != hint {
				return 0
			}
			boost := 0.8
			if q.Now.Sub(rec.Timestamp) < freshWindow {
				boost += 0.5
			}
			return boost
		},
	},
	{
		// Ambiguous "the one you wrote" with no type word: any creative
		// content is a plausible referent, freshest most of all.
		Name: "ambiguous-creation",
		Apply: func(q Query, rec *model.ConversationRecord) float64 {
			lower := strings.ToLower(q.Text)
			if !strings.Contains(lower, "the one you wrote") || namedType(lower) != "" {
				return 0
			}
			if rec.ContentType != model.ContentPoem && rec.ContentType != model.ContentCode {
				return 0
			}
			boost := 0.7
			if q.Now.Sub(rec.Timestamp) < freshWindow {
				boost += 0.6
			}
			return boost
		},
	},
	{
		// Line-position questions must land on the most recently created
		// creative artifact regardless of token overlap.
		Name: "line-query-fresh-artifact",
		Apply: func(q Query, rec *model.ConversationRecord) float64 {
			if q.Structured == nil || q.Structured.RequestType != model.RequestLineSpecific {
				return 0
			}
			if rec.ContentType != model.ContentPoem && rec.ContentType != model.ContentCode {
				return 0
			}
			if q.Now.Sub(rec.Timestamp) >= freshWindow {
				return 0
			}
			return 1.5
		},
	},
	{
		// Same-session content outranks any cross-session match.
		Name: "current-session",
		Apply: func(q Query, rec *model.ConversationRecord) float64 {
			if q.SessionID == "" || rec.SessionID != q.SessionID {
				return 0
			}
			return 2.0
		},
	},
}

// Rank scores every record and returns candidates in descending relevance
// order. The order is total and deterministic: near-equal scores fall back
// to timestamp (newer first), then to id.
func Rank(q Query, records []*model.ConversationRecord) []Candidate {
	if q.Now.IsZero() {
		q.Now = time.Now()
	}

	queryTokens := classify.Tokenize(q.Text)
	window := tieWindow
	if recencyQualified(q.Text) {
		window = wideTieWindow
	}

	candidates := make([]Candidate, 0, len(records))
	for _, rec := range records {
		score := baseScore(q, queryTokens, rec)
		for _, rule := range BoostRules {
			score += rule.Apply(q, rec)
		}
		candidates = append(candidates, Candidate{
			Record:    rec,
			Score:     score,
			Relevance: clamp(score),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		diff := a.Score - b.Score
		if diff < 0 {
			diff = -diff
		}
		if diff < window {
			if !a.Record.Timestamp.Equal(b.Record.Timestamp) {
				return a.Record.Timestamp.After(b.Record.Timestamp)
			}
			return a.Record.ID < b.Record.ID
		}
		return a.Score > b.Score
	})

	return candidates
}

func baseScore(q Query, queryTokens []string, rec *model.ConversationRecord) float64 {
	score := overlapWeight * overlapRatio(queryTokens, rec)

	if named := namedType(strings.ToLower(q.Text)); named != "" && rec.ContentType == named {
		score += typeBonus
	}

	if q.Now.Sub(rec.Timestamp) < recencyWindow {
		score += recencyBonus
	}

	return score
}

// overlapRatio is shared tokens over query token count.
func overlapRatio(queryTokens []string, rec *model.ConversationRecord) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	recTokens := make(map[string]struct{})
	for _, tok := range classify.Tokenize(rec.UserMessage + " " + rec.AssistantResponse) {
		recTokens[tok] = struct{}{}
	}

	shared := 0
	for _, tok := range queryTokens {
		if _, ok := recTokens[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(queryTokens))
}

// namedType reports the content type a query names outright, if any.
func namedType(lower string) model.ContentType {
	switch {
	case strings.Contains(lower, "poem") || strings.Contains(lower, "haiku"):
		return model.ContentPoem
	case strings.Contains(lower, "code") || strings.Contains(lower, "function") || strings.Contains(lower, "script"):
		return model.ContentCode
	case strings.Contains(lower, "story"):
		return model.ContentStory
	case strings.Contains(lower, "explanation"):
		return model.ContentExplanation
	}
	return ""
}

func recencyQualified(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range []string{"you wrote", "just wrote", "most recent", "latest", "just now"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func clamp(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}
