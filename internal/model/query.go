package model

// RequestType distinguishes general lookups from line-specific ones.
type RequestType string

const (
	RequestGeneral      RequestType = "general"
	RequestLineSpecific RequestType = "line-specific"
)

// LinePosition is the direction a line target is counted from.
type LinePosition string

const (
	FromStart LinePosition = "from-start"
	FromEnd   LinePosition = "from-end"
)

// LineTarget describes a parsed line/verse request. Explanation carries a
// human-readable restatement of the arithmetic so the downstream generator
// can show its counting instead of silently guessing.
type LineTarget struct {
	Number      int          `json:"number"`
	Position    LinePosition `json:"position"`
	Explanation string       `json:"explanation"`
}

// PreviousContext is caller-supplied continuity for follow-up resolution.
// The engine never retains this across calls; the caller owns continuity.
type PreviousContext struct {
	ContentID   string      `json:"content_id"`
	ContentType ContentType `json:"content_type"`
}

// StructuredQuery is the per-call intent extracted from a user message.
// It is ephemeral and never persisted.
type StructuredQuery struct {
	RequestType     RequestType      `json:"request_type"`
	ContentTypeHint ContentType      `json:"content_type_hint,omitempty"`
	Line            *LineTarget      `json:"line,omitempty"`
	IsFollowUp      bool             `json:"is_follow_up"`
	TemporalHint    string           `json:"temporal_hint,omitempty"`
	Carried         *PreviousContext `json:"carried_context,omitempty"`
}
