package model

import (
	"time"
)

// Artifact is selection metadata for one record included in a context block.
type Artifact struct {
	ID        string      `json:"id"`
	Type      ContentType `json:"type"`
	Relevance float64     `json:"relevance"`
	Timestamp time.Time   `json:"timestamp"`
}

// ContextResult is the assembled context block plus selection metadata.
// An empty ContextText with count 0 means "no relevant memory" and is a
// normal outcome, not an error.
type ContextResult struct {
	ContextText               string     `json:"context_text"`
	Summary                   string     `json:"summary"`
	Artifacts                 []Artifact `json:"artifacts"`
	RelevantConversationCount int        `json:"relevant_conversation_count"`
}

// ContextRequest is the request to build a context block for a message.
type ContextRequest struct {
	Message         string           `json:"message"`
	SessionID       string           `json:"session_id"`
	PreviousContext *PreviousContext `json:"previous_context,omitempty"`
}

// DetectRequest is the request to test a message for a memory reference.
type DetectRequest struct {
	Message string `json:"message"`
}

// DetectResponse is the detection outcome.
type DetectResponse struct {
	ReferencesMemory bool    `json:"references_memory"`
	Confidence       float64 `json:"confidence"`
}
