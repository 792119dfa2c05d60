package models

import "time"

// DocumentChunk is a slice of a document's extracted text kept for retrieval.
type DocumentChunk struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID string    `gorm:"type:uuid;not null;index" json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	ChunkType  string    `gorm:"default:paragraph" json:"chunk_type"`
	CreatedAt  time.Time `json:"created_at"`
}
