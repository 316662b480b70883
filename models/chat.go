package models

import (
	"time"
)

// Message authorship.
const (
	AuthorUser  = "user"
	AuthorModel = "model"
)

// ChatSession is the single conversation attached to a document. It is
// created lazily on the first chat message and lives as long as the
// document does.
type ChatSession struct {
	ID         string        `bson:"_id" json:"id"`
	DocumentID string        `bson:"document_id" json:"document_id"`
	Model      string        `bson:"model" json:"model"`
	Messages   []ChatMessage `bson:"messages" json:"messages"`
	CreatedAt  time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at" json:"updated_at"`
}

// ChatMessage is one turn in a session, ordered by append time.
type ChatMessage struct {
	Author    string    `bson:"author" json:"author"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// APICallLog records per-correlation latency and outcome for the HTTP
// request and its background job leg.
type APICallLog struct {
	CorrelationID   string    `bson:"correlation_id" json:"correlation_id"`
	Timestamp       time.Time `bson:"event_timestamp" json:"event_timestamp"`
	LatencyMs       int64     `bson:"latency_ms" json:"latency_ms"`
	Endpoint        string    `bson:"endpoint" json:"endpoint"`
	StatusCode      int       `bson:"status_code" json:"status_code"`
	JobLatencyMs    int64     `bson:"job_latency_ms,omitempty" json:"job_latency_ms,omitempty"`
	JobStatusCode   int       `bson:"job_status_code,omitempty" json:"job_status_code,omitempty"`
	JobErrorMessage string    `bson:"job_error_message,omitempty" json:"job_error_message,omitempty"`
}
