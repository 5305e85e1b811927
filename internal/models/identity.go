package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is a registered household member.
type Identity struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	ImagePath   string    `json:"image_path" db:"image_path"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type IdentityEmbedding struct {
	ID         uuid.UUID `json:"id" db:"id"`
	IdentityID uuid.UUID `json:"identity_id" db:"identity_id"`
	Embedding  []float32 `json:"embedding" db:"embedding"`
	Quality    float32   `json:"quality" db:"quality"`
	SourcePath string    `json:"source_path" db:"source_path"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
