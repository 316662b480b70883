package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LLMontreal/llmontreal-backend/internal/broker"
	"github.com/LLMontreal/llmontreal-backend/internal/correlation"
	"github.com/LLMontreal/llmontreal-backend/internal/logger"
	"github.com/LLMontreal/llmontreal-backend/internal/store"
	"github.com/LLMontreal/llmontreal-backend/models"
)

// ErrDocumentNotReady means chat was requested for a document whose text
// has not been extracted yet, so there is nothing to ground answers on.
var ErrDocumentNotReady = errors.New("document has no extracted text to chat about")

// ChatDispatcher submits chat jobs and returns awaitable handles.
type ChatDispatcher interface {
	DispatchChat(ctx context.Context, sessionID, model, prompt string) (*correlation.Pending, error)
}

// Service manages per-document chat sessions and the ask/answer round
// trip. Each document gets at most one session, created lazily on the
// first message.
type Service struct {
	sessions store.ChatSessionStore
	docs     store.DocumentStore
	dispatch ChatDispatcher

	model    string
	chatWait time.Duration
}

func NewService(sessions store.ChatSessionStore, docs store.DocumentStore, dispatch ChatDispatcher, model string, chatWait time.Duration) *Service {
	return &Service{
		sessions: sessions,
		docs:     docs,
		dispatch: dispatch,
		model:    model,
		chatWait: chatWait,
	}
}

// GetOrCreateSession returns the document's chat session, creating it on
// first use. The document must have extracted text.
func (s *Service) GetOrCreateSession(ctx context.Context, documentID string) (*models.ChatSession, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.HasExtractedText() {
		return nil, fmt.Errorf("%w: document %s", ErrDocumentNotReady, documentID)
	}

	session, err := s.sessions.FindByDocumentID(ctx, documentID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	session = &models.ChatSession{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Model:      s.model,
		Messages:   []models.ChatMessage{},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		// A concurrent first message may have won the unique index race.
		if existing, ferr := s.sessions.FindByDocumentID(ctx, documentID); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	return session, nil
}

// History returns the document's chat session with its messages.
func (s *Service) History(ctx context.Context, documentID string) (*models.ChatSession, error) {
	return s.sessions.FindByDocumentID(ctx, documentID)
}

// Send records the user message, dispatches the chat job, and blocks
// until the model's reply arrives. The worker persists the reply to the
// session before publishing, so the returned message matches storage.
func (s *Service) Send(ctx context.Context, documentID, message string) (*models.ChatMessage, error) {
	session, err := s.GetOrCreateSession(ctx, documentID)
	if err != nil {
		return nil, err
	}

	userMsg := models.ChatMessage{
		Author:    models.AuthorUser,
		Text:      message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.AppendMessage(ctx, session.ID, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	pending, err := s.dispatch.DispatchChat(ctx, session.ID, session.Model, message)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.chatWait)
	defer cancel()

	payload, err := pending.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("chat for document %s: %w", documentID, correlation.ErrTimeout)
		}
		return nil, err
	}

	var envelope broker.ChatResponse
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if envelope.Result == nil {
		return nil, fmt.Errorf("chat response for session %s carries no result", session.ID)
	}

	logger.Info("chat reply received", "document_id", documentID, "chat_session_id", session.ID)
	return &models.ChatMessage{
		Author:    envelope.Result.Author,
		Text:      envelope.Result.Response,
		CreatedAt: envelope.Result.CreatedAt,
	}, nil
}
