package models

import "github.com/google/uuid"

// GenerationRequest enqueues a plain generation job.
type GenerationRequest struct {
	OwnerID  uuid.UUID              `json:"owner_id" binding:"required"`
	Mode     GenerationMode         `json:"mode"`
	Text     string                 `json:"text" binding:"required"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CollectionGenerationRequest enqueues a study-set generation job over one
// or more sources.
type CollectionGenerationRequest struct {
	OwnerID uuid.UUID     `json:"owner_id" binding:"required"`
	Title   string        `json:"title" binding:"required"`
	Tags    []string      `json:"tags,omitempty"`
	Sources []SourceInput `json:"sources" binding:"required"`
}

// DocumentGenerationRequest enqueues a study-set generation job from a
// single stored document.
type DocumentGenerationRequest struct {
	OwnerID     uuid.UUID `json:"owner_id" binding:"required"`
	DocumentID  uuid.UUID `json:"document_id" binding:"required"`
	StoragePath string    `json:"storage_path" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Tags        []string  `json:"tags,omitempty"`
}
