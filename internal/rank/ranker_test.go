package rank

import (
	"testing"
	"time"

	"github.com/promptpad/memoryd/internal/model"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(id, session string, t model.ContentType, user, resp string, age time.Duration) *model.ConversationRecord {
	return &model.ConversationRecord{
		ID:                id,
		SessionID:         session,
		Timestamp:         now.Add(-age),
		UserMessage:       user,
		AssistantResponse: resp,
		ContentType:       t,
	}
}

func TestRankOverlapOrdersOldRecords(t *testing.T) {
	both := rec("a", "", model.ContentGeneral, "tell me about desert rain", "desert rain is rare", 48*time.Hour)
	one := rec("b", "", model.ContentGeneral, "tell me about the desert", "the desert is dry", 48*time.Hour)

	got := Rank(Query{Text: "desert rain", Now: now}, []*model.ConversationRecord{one, both})
	if got[0].Record.ID != "a" {
		t.Fatalf("top = %s, want a (full token overlap)", got[0].Record.ID)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not ordered: %v vs %v", got[0].Score, got[1].Score)
	}
}

func TestRankNamedRecentCreationBeatsOverlap(t *testing.T) {
	// The story mentions "poem" so it wins on raw token overlap, but the
	// query names a freshly written poem and must land on it.
	story := rec("story", "", model.ContentStory,
		"write a story about a poem", "Once upon a time a poet lost her poem.", 2*time.Hour)
	poem := rec("poem", "", model.ContentPoem,
		"write something short", "Dust on the sill\nLight through the glass\nNothing moves", 5*time.Minute)

	got := Rank(Query{Text: "the poem you just wrote", Now: now},
		[]*model.ConversationRecord{story, poem})
	if got[0].Record.ID != "poem" {
		t.Fatalf("top = %s, want poem", got[0].Record.ID)
	}
}

func TestRankAmbiguousCreationPrefersCreativeContent(t *testing.T) {
	general := rec("general", "", model.ContentGeneral, "what's the weather", "Sunny.", 5*time.Minute)
	poem := rec("poem", "", model.ContentPoem, "write a poem", "One\nTwo\nThree lines here", 5*time.Minute)

	got := Rank(Query{Text: "the one you wrote", Now: now},
		[]*model.ConversationRecord{general, poem})
	if got[0].Record.ID != "poem" {
		t.Fatalf("top = %s, want poem", got[0].Record.ID)
	}
}

func TestRankLineQueryPrefersFreshArtifact(t *testing.T) {
	stale := rec("stale", "", model.ContentPoem, "write a poem", "old\nold\nold lines", 3*time.Hour)
	fresh := rec("fresh", "", model.ContentPoem, "write a poem", "new\nnew\nnew lines", 10*time.Minute)

	q := Query{
		Text: "what's line 4?",
		Structured: &model.StructuredQuery{
			RequestType: model.RequestLineSpecific,
			Line:        &model.LineTarget{Number: 4, Position: model.FromStart},
		},
		Now: now,
	}
	got := Rank(q, []*model.ConversationRecord{stale, fresh})
	if got[0].Record.ID != "fresh" {
		t.Fatalf("top = %s, want fresh", got[0].Record.ID)
	}
	if got[0].Score-got[1].Score < 1.0 {
		t.Errorf("fresh artifact boost too small: %v vs %v", got[0].Score, got[1].Score)
	}
}

func TestRankCurrentSessionOutranksCrossSession(t *testing.T) {
	inSession := rec("in", "s1", model.ContentGeneral, "remember this number", "Noted: 42.", 20*time.Hour)
	elsewhere := rec("out", "s2", model.ContentGeneral, "remember this number", "Noted: 7.", 5*time.Minute)

	got := Rank(Query{Text: "remind me", SessionID: "s1", Now: now},
		[]*model.ConversationRecord{elsewhere, inSession})
	if got[0].Record.ID != "in" {
		t.Fatalf("top = %s, want in (same session)", got[0].Record.ID)
	}
}

func TestRankTieBreaksNewerThenID(t *testing.T) {
	older := rec("z", "", model.ContentGeneral, "hello", "hi", 2*time.Hour)
	newer := rec("m", "", model.ContentGeneral, "hello", "hi", 1*time.Hour)

	got := Rank(Query{Text: "unrelated", Now: now}, []*model.ConversationRecord{older, newer})
	if got[0].Record.ID != "m" {
		t.Fatalf("top = %s, want m (newer wins near ties)", got[0].Record.ID)
	}

	twinA := rec("a", "", model.ContentGeneral, "hello", "hi", time.Hour)
	twinB := rec("b", "", model.ContentGeneral, "hello", "hi", time.Hour)
	got = Rank(Query{Text: "unrelated", Now: now}, []*model.ConversationRecord{twinB, twinA})
	if got[0].Record.ID != "a" {
		t.Fatalf("top = %s, want a (id breaks exact ties)", got[0].Record.ID)
	}
}

func TestRankRelevanceClampedScoreRaw(t *testing.T) {
	poem := rec("poem", "s1", model.ContentPoem, "write a poem", "a\nb\nc lines", 5*time.Minute)

	got := Rank(Query{Text: "the poem you just wrote", SessionID: "s1", Now: now},
		[]*model.ConversationRecord{poem})
	if got[0].Score <= 1.0 {
		t.Errorf("raw score = %v, want > 1.0 with stacked boosts", got[0].Score)
	}
	if got[0].Relevance != 1.0 {
		t.Errorf("relevance = %v, want clamped 1.0", got[0].Relevance)
	}
}

func TestRankEmptyInput(t *testing.T) {
	if got := Rank(Query{Text: "anything", Now: now}, nil); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}
