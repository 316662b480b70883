package models

import (
	"time"
)

// Document lifecycle states. Completed and failed are terminal per
// extraction attempt; a summary regeneration re-enters processing.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document holds the uploaded payload together with everything derived
// from it. The raw bytes stay on the row so extraction can be re-run;
// extracted text and summary are set as the pipeline progresses.
type Document struct {
	ID            string    `bson:"_id" json:"id"`
	FileName      string    `bson:"file_name" json:"file_name"`
	FileType      string    `bson:"file_type" json:"file_type"` // declared media type at upload
	FileData      []byte    `bson:"file_data" json:"-"`
	Status        string    `bson:"status" json:"status"`
	ExtractedText string    `bson:"extracted_text,omitempty" json:"extracted_text,omitempty"`
	Summary       string    `bson:"summary,omitempty" json:"summary,omitempty"`
	ErrorMessage  string    `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Version       int64     `bson:"version" json:"-"` // optimistic lock for concurrent regen
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// HasExtractedText reports whether extraction produced usable content.
func (d *Document) HasExtractedText() bool {
	return len(d.ExtractedText) > 0
}

// IsTerminal reports whether the document reached a terminal state.
func (d *Document) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed
}
