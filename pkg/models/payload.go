package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Job payloads and results form a tagged union keyed by Job.Type. The rows
// store them as opaque JSONB; workers decode them back into the typed shape
// for their job type and reject anything else at the dispatch boundary.

// GenerationMode selects the output kind of a plain generation job.
type GenerationMode string

const (
	ModeText       GenerationMode = "text"
	ModeStructured GenerationMode = "structured"
)

// GenerationPayload is the payload for "generation" jobs.
type GenerationPayload struct {
	Mode     GenerationMode         `json:"mode"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// GenerationResult is the result for "generation" jobs.
type GenerationResult struct {
	Mode       GenerationMode `json:"mode"`
	Kind       string         `json:"kind"` // "text" or "structured"
	Data       interface{}    `json:"data"`
	TokensUsed int            `json:"tokens_used"`
	Model      string         `json:"model"`
}

// SourceInput references one content source of a collection-generation job:
// either inline raw text or a stored document to download and extract.
type SourceInput struct {
	DocumentID        *uuid.UUID `json:"document_id,omitempty"`
	DocumentVersionID *uuid.UUID `json:"document_version_id,omitempty"`
	StoragePath       string     `json:"storage_path,omitempty"`
	Title             string     `json:"title"`
	Tags              []string   `json:"tags,omitempty"`
	RawText           string     `json:"raw_text,omitempty"`
}

// CollectionGenerationPayload is the payload for "collection-generation" jobs.
type CollectionGenerationPayload struct {
	CollectionID uuid.UUID     `json:"collection_id"`
	UserID       uuid.UUID     `json:"user_id"`
	Title        string        `json:"title"`
	Tags         []string      `json:"tags,omitempty"`
	Sources      []SourceInput `json:"sources"`
}

// CollectionGenerationResult is the result for "collection-generation" jobs.
type CollectionGenerationResult struct {
	CollectionID    uuid.UUID `json:"collection_id"`
	FlashcardsCount int       `json:"flashcards_count"`
	QuizCount       int       `json:"quiz_count"`
	TokensUsed      int       `json:"tokens_used"`
}

// DocumentGenerationPayload is the payload for "document-generation" jobs:
// a study set generated from a single stored document.
type DocumentGenerationPayload struct {
	DocumentID   uuid.UUID `json:"document_id"`
	CollectionID uuid.UUID `json:"collection_id"`
	UserID       uuid.UUID `json:"user_id"`
	StoragePath  string    `json:"storage_path"`
	Title        string    `json:"title"`
	Tags         []string  `json:"tags,omitempty"`
}

// EncodePayload converts a typed payload into the opaque JSON stored on the row.
func EncodePayload(v interface{}) (JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	out := JSON{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

// DecodePayload converts the opaque JSON on the row back into a typed payload.
func DecodePayload(j JSON, out interface{}) error {
	raw, err := json.Marshal(map[string]interface{}(j))
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
