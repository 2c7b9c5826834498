package analyze

import (
	"math"
	"testing"

	"github.com/promptpad/memoryd/internal/model"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name           string
		message        string
		wantDetected   bool
		wantConfidence float64
	}{
		{
			// content 0.25 + line-reference 0.4 + type hint 0.15
			name:           "line question about named content",
			message:        "what's line 4 of that poem?",
			wantDetected:   true,
			wantConfidence: 0.8,
		},
		{
			// content 0.25 + temporal 0.2 + type hint 0.15
			name:           "recent creation reference",
			message:        "the poem you just wrote",
			wantDetected:   true,
			wantConfidence: 0.6,
		},
		{
			// clarification 0.25 + line-reference 0.4
			name:           "challenge about a line",
			message:        "wouldn't that be the second to last line?",
			wantDetected:   true,
			wantConfidence: 0.65,
		},
		{
			name:           "fresh factual question",
			message:        "What is the capital of France?",
			wantDetected:   false,
			wantConfidence: 0,
		},
		{
			// temporal alone stays under the threshold
			name:           "bare temporal marker",
			message:        "yesterday was sunny",
			wantDetected:   false,
			wantConfidence: 0.2,
		},
		{
			name:           "empty message",
			message:        "   ",
			wantDetected:   false,
			wantConfidence: 0,
		},
		{
			// all five categories plus the hint, capped at 1.0
			name:           "everything at once",
			message:        "wait, are you sure? earlier you wrote the poem, back to that one, what about line 2?",
			wantDetected:   true,
			wantConfidence: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected, confidence := Detect(tt.message)
			if detected != tt.wantDetected {
				t.Errorf("Detect(%q) detected = %v, want %v", tt.message, detected, tt.wantDetected)
			}
			if math.Abs(confidence-tt.wantConfidence) > 1e-9 {
				t.Errorf("Detect(%q) confidence = %v, want %v", tt.message, confidence, tt.wantConfidence)
			}
		})
	}
}

func TestDetectCategoryFiresOnce(t *testing.T) {
	// Two temporal phrases must not double-count the category.
	_, single := Detect("what did you say earlier")
	_, double := Detect("what did you say earlier, just now")
	if single != double {
		t.Errorf("temporal category counted twice: %v vs %v", single, double)
	}
}

func TestParseLineTarget(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantNum  int
		wantPos  model.LinePosition
		wantNone bool
	}{
		{name: "plain line number", message: "what's line 4 of that poem?", wantNum: 4, wantPos: model.FromStart},
		{name: "ordinal word", message: "read me the second line of the story", wantNum: 2, wantPos: model.FromStart},
		{name: "numeric ordinal", message: "the 3rd line was my favorite", wantNum: 3, wantPos: model.FromStart},
		{name: "second to last", message: "wouldn't that be the second to last line?", wantNum: 2, wantPos: model.FromEnd},
		{name: "numeric from last", message: "show me the 3rd from last", wantNum: 3, wantPos: model.FromEnd},
		{name: "verse from the end", message: "the third verse from the end", wantNum: 3, wantPos: model.FromEnd},
		{name: "from the bottom", message: "line 2 from the bottom please", wantNum: 2, wantPos: model.FromEnd},
		{name: "last line", message: "what was the last line again", wantNum: 1, wantPos: model.FromEnd},
		{name: "final verse", message: "repeat the final verse", wantNum: 1, wantPos: model.FromEnd},
		{name: "no target", message: "how many lines does it have", wantNone: true},
		{name: "article before line", message: "the line about the sea", wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLineTarget(tt.message)
			if tt.wantNone {
				if got != nil {
					t.Fatalf("parseLineTarget(%q) = %+v, want nil", tt.message, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("parseLineTarget(%q) = nil, want {%d, %v}", tt.message, tt.wantNum, tt.wantPos)
			}
			if got.Number != tt.wantNum || got.Position != tt.wantPos {
				t.Errorf("parseLineTarget(%q) = {%d, %v}, want {%d, %v}",
					tt.message, got.Number, got.Position, tt.wantNum, tt.wantPos)
			}
			if got.Explanation == "" {
				t.Error("line target missing explanation")
			}
		})
	}
}

func TestExtractContentQuery(t *testing.T) {
	t.Run("line specific with type hint", func(t *testing.T) {
		q := ExtractContentQuery("what's line 4 of that poem?", nil)
		if q.RequestType != model.RequestLineSpecific {
			t.Errorf("request type = %v, want line-specific", q.RequestType)
		}
		if q.Line == nil || q.Line.Number != 4 || q.Line.Position != model.FromStart {
			t.Errorf("line = %+v, want {4, from-start}", q.Line)
		}
		if q.ContentTypeHint != model.ContentPoem {
			t.Errorf("type hint = %v, want poem", q.ContentTypeHint)
		}
		if q.IsFollowUp {
			t.Error("not a follow-up")
		}
	})

	t.Run("follow-up carries previous context", func(t *testing.T) {
		prev := &model.PreviousContext{ContentID: "abc", ContentType: model.ContentPoem}
		q := ExtractContentQuery("wouldn't that be the second to last line?", prev)
		if !q.IsFollowUp {
			t.Fatal("expected follow-up")
		}
		if q.Carried != prev {
			t.Error("previous context not carried")
		}
		if q.ContentTypeHint != model.ContentPoem {
			t.Errorf("type hint = %v, want inherited poem", q.ContentTypeHint)
		}
		if q.Line == nil || q.Line.Number != 2 || q.Line.Position != model.FromEnd {
			t.Errorf("line = %+v, want {2, from-end}", q.Line)
		}
	})

	t.Run("follow-up without previous context", func(t *testing.T) {
		q := ExtractContentQuery("actually, make it shorter", nil)
		if !q.IsFollowUp {
			t.Error("expected follow-up")
		}
		if q.Carried != nil {
			t.Errorf("carried = %+v, want nil", q.Carried)
		}
	})

	t.Run("explicit hint wins over carried type", func(t *testing.T) {
		prev := &model.PreviousContext{ContentID: "abc", ContentType: model.ContentPoem}
		q := ExtractContentQuery("actually, show me the code instead", prev)
		if q.ContentTypeHint != model.ContentCode {
			t.Errorf("type hint = %v, want code", q.ContentTypeHint)
		}
	})

	t.Run("temporal hint extracted", func(t *testing.T) {
		q := ExtractContentQuery("the code you wrote yesterday", nil)
		if q.TemporalHint != "yesterday" {
			t.Errorf("temporal hint = %q, want %q", q.TemporalHint, "yesterday")
		}
		if q.RequestType != model.RequestGeneral {
			t.Errorf("request type = %v, want general", q.RequestType)
		}
	})
}
