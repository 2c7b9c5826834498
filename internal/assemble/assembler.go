// Package assemble turns a ranked candidate list into the context block
// handed to the external generator, plus selection metadata.
//
// For line-specific queries the output is split into an authoritative tier
// (exchanges judged to contain the full original artifact) and a
// reference-only tier (answers about it, which may misquote). The split,
// and the trailing instruction to verify against full content, exist to
// stop an earlier wrong answer from being replayed later as fact.
package assemble

import (
	"fmt"
	"strings"

	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/internal/rank"
)

const (
	topCandidates       = 5
	typeNarrowedMax     = 3
	forcedAuthoritative = 2

	// authoritativeMinLength is the response size below which an exchange
	// cannot have contained a full artifact.
	authoritativeMinLength = 200
)

const (
	authoritativeHeader = "=== AUTHORITATIVE CONTENT (full original artifacts) ==="
	referenceHeader     = "=== REFERENCE MENTIONS (may paraphrase or misquote) ==="

	verifyInstruction = "When answering line or position questions, count against the " +
		"authoritative content above and verify against the full text rather than " +
		"any earlier answers about it. Resolve \"most recent\" chronologically " +
		"across both sections."
)

// fullContentPhrases indicate the assistant showed the complete artifact.
var fullContentPhrases = []string{
	"here is the",
	"here's the",
	"full poem",
	"full code",
	"complete poem",
	"complete code",
	"in its entirety",
}

// sessionPhrases mark a query as explicitly about the current conversation.
var sessionPhrases = []string{
	"this conversation",
	"this session",
	"this chat",
	"we just",
	"earlier in this",
	"in our conversation",
}

// Build selects records from the ranked candidates and formats the context
// block. An empty result with count 0 means no relevant memory and is a
// normal outcome.
func Build(q rank.Query, candidates []rank.Candidate) *model.ContextResult {
	scored := make([]rank.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score > 0 {
			scored = append(scored, c)
		}
	}

	selected := selectCandidates(q, scored)
	if len(selected) == 0 {
		return &model.ContextResult{
			Summary:   "no relevant conversation history",
			Artifacts: []model.Artifact{},
		}
	}

	lineSpecific := q.Structured != nil && q.Structured.RequestType == model.RequestLineSpecific

	var authoritative, reference []rank.Candidate
	if lineSpecific {
		for _, c := range selected {
			if isAuthoritative(c.Record) {
				authoritative = append(authoritative, c)
			} else {
				reference = append(reference, c)
			}
		}
	} else {
		reference = selected
	}

	var b strings.Builder
	b.WriteString("Relevant conversation history:\n")
	if lineSpecific && q.Structured.Line != nil {
		fmt.Fprintf(&b, "The user is asking about %s.\n", q.Structured.Line.Explanation)
	}

	if lineSpecific {
		b.WriteString("\n" + authoritativeHeader + "\n")
		for _, c := range authoritative {
			writeEntry(&b, c)
		}
		if len(authoritative) == 0 {
			b.WriteString("(none found)\n")
		}
		b.WriteString("\n" + referenceHeader + "\n")
		for _, c := range reference {
			writeEntry(&b, c)
		}
		b.WriteString("\n" + verifyInstruction + "\n")
	} else {
		for _, c := range reference {
			writeEntry(&b, c)
		}
	}

	artifacts := make([]model.Artifact, 0, len(selected))
	for _, c := range selected {
		artifacts = append(artifacts, model.Artifact{
			ID:        c.Record.ID,
			Type:      c.Record.ContentType,
			Relevance: c.Relevance,
			Timestamp: c.Record.Timestamp,
		})
	}

	summary := fmt.Sprintf("%d relevant conversation(s)", len(selected))
	if lineSpecific {
		summary = fmt.Sprintf("%d relevant conversation(s), %d authoritative", len(selected), len(authoritative))
	}

	return &model.ContextResult{
		ContextText:               b.String(),
		Summary:                   summary,
		Artifacts:                 artifacts,
		RelevantConversationCount: len(selected),
	}
}

// selectCandidates applies the selection policy in priority order.
func selectCandidates(q rank.Query, candidates []rank.Candidate) []rank.Candidate {
	lineSpecific := q.Structured != nil && q.Structured.RequestType == model.RequestLineSpecific

	// 1. Session scope: when the caller is in a session and the query is
	// explicitly session-specific or line-specific, current-session content
	// is never diluted with cross-session history.
	if q.SessionID != "" && (sessionSpecific(q.Text) || lineSpecific) {
		var inSession []rank.Candidate
		for _, c := range candidates {
			if c.Record.SessionID == q.SessionID {
				inSession = append(inSession, c)
			}
		}
		if len(inSession) > 0 {
			candidates = inSession
		}
	}

	// 2. "the X you wrote" with a named type: narrow to that type.
	lower := strings.ToLower(q.Text)
	if q.Structured != nil && q.Structured.ContentTypeHint != "" &&
		(strings.Contains(lower, "you wrote") || strings.Contains(lower, "you made")) {
		var sameType []rank.Candidate
		for _, c := range candidates {
			if c.Record.ContentType == q.Structured.ContentTypeHint {
				sameType = append(sameType, c)
			}
		}
		if len(sameType) > 0 {
			if len(sameType) > typeNarrowedMax {
				sameType = sameType[:typeNarrowedMax]
			}
			return sameType
		}
	}

	// 3. Line-specific: top five, then force in up to two authoritative
	// candidates from outside the top five. Correctness on line counting
	// outranks strict relevance order.
	if lineSpecific {
		selected := head(candidates, topCandidates)
		forced := 0
		for _, c := range candidates[min(len(candidates), topCandidates):] {
			if forced >= forcedAuthoritative {
				break
			}
			if isAuthoritative(c.Record) {
				selected = append(selected, c)
				forced++
			}
		}
		return selected
	}

	// 4. Default: top five.
	return head(candidates, topCandidates)
}

// isAuthoritative reports whether an exchange likely contains the full
// original artifact rather than a paraphrase or partial answer about it.
func isAuthoritative(rec *model.ConversationRecord) bool {
	if len(rec.AssistantResponse) <= authoritativeMinLength {
		return false
	}
	if strings.Contains(rec.AssistantResponse, "```") {
		return true
	}
	lower := strings.ToLower(rec.AssistantResponse)
	for _, phrase := range fullContentPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return rec.ContentType == model.ContentPoem || rec.ContentType == model.ContentStory
}

func sessionSpecific(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range sessionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func writeEntry(b *strings.Builder, c rank.Candidate) {
	fmt.Fprintf(b, "\n[%s | %s | relevance %.2f]\nUser: %s\nAssistant: %s\n",
		c.Record.ContentType,
		c.Record.Timestamp.Format("2006-01-02 15:04"),
		c.Relevance,
		c.Record.UserMessage,
		c.Record.AssistantResponse,
	)
}

func head(candidates []rank.Candidate, n int) []rank.Candidate {
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return append([]rank.Candidate(nil), candidates...)
}
