package store

import (
	"context"
	"errors"

	"github.com/LLMontreal/llmontreal-backend/models"
)

var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict means a guarded update lost an optimistic
	// version race; the caller's view of the document is stale.
	ErrVersionConflict = errors.New("document version conflict")
)

// DocumentStore persists documents and applies their state transitions.
// Every write bumps updated_at and the version counter; status+payload
// writes are single-document atomic so readers never observe a completed
// document without its summary.
type DocumentStore interface {
	Insert(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, status string, page, size int64) ([]models.Document, int64, error)

	// SetStatus moves the document to status unconditionally.
	SetStatus(ctx context.Context, id, status string) error

	// SetExtractedText records successful extraction output. Status is
	// untouched: the document stays processing until the summary result.
	SetExtractedText(ctx context.Context, id, text string) error

	// CompleteWithSummary persists the summary and the completed status
	// in one write.
	CompleteWithSummary(ctx context.Context, id, summary string) error

	// Fail marks the document failed, retaining any extracted text.
	Fail(ctx context.Context, id, errorMessage string) error

	// BeginRegeneration clears the summary and re-enters processing,
	// guarded by the version the caller read. Returns ErrVersionConflict
	// when a concurrent regeneration won.
	BeginRegeneration(ctx context.Context, id string, version int64) error
}

// ChatSessionStore persists chat sessions and their ordered messages.
type ChatSessionStore interface {
	Insert(ctx context.Context, session *models.ChatSession) error
	FindByID(ctx context.Context, id string) (*models.ChatSession, error)
	FindByDocumentID(ctx context.Context, documentID string) (*models.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error
}

// APICallLogStore records per-correlation request and job telemetry.
// Best effort everywhere: callers log failures and move on.
type APICallLogStore interface {
	Record(ctx context.Context, entry *models.APICallLog) error
	RecordJobResult(ctx context.Context, correlationID string, latencyMs int64, statusCode int, errorMessage string) error
}
