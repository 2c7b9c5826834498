// Package model defines data structures for the memory engine.
package model

import (
	"time"
)

// ContentType is the classifier's single-label judgment of an exchange.
type ContentType string

const (
	ContentPoem        ContentType = "poem"
	ContentCode        ContentType = "code"
	ContentExplanation ContentType = "explanation"
	ContentStory       ContentType = "story"
	ContentGeneral     ContentType = "general"
)

// RecordMetadata holds derived scalars for fast filtering without reparsing text.
type RecordMetadata struct {
	MessageLength  int         `json:"message_length"`
	ResponseLength int         `json:"response_length"`
	DetectedType   ContentType `json:"detected_type"`
}

// ConversationRecord is one stored user/assistant exchange. Records are
// append-only: once persisted they are never mutated or deleted except by
// an explicit administrative reset.
type ConversationRecord struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"session_id"`
	Timestamp         time.Time      `json:"timestamp"`
	UserMessage       string         `json:"user_message"`
	AssistantResponse string         `json:"assistant_response"`
	ContentType       ContentType    `json:"content_type"`
	Topics            []string       `json:"topics"`
	Metadata          RecordMetadata `json:"metadata"`
}

// StoreRequest is the request to store a completed exchange.
type StoreRequest struct {
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
	SessionID         string `json:"session_id"`
}

// StoreResponse is the response after storing an exchange.
type StoreResponse struct {
	ConversationID string      `json:"conversation_id"`
	ContentType    ContentType `json:"content_type"`
}
