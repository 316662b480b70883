package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/LLMontreal/llmontreal-backend/internal/broker"
	"github.com/LLMontreal/llmontreal-backend/internal/logger"
	"github.com/LLMontreal/llmontreal-backend/internal/store"
	"github.com/LLMontreal/llmontreal-backend/models"
)

// Generator is the slice of the model client the handlers need.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// ResultPublisher is the slice of the broker publisher the handlers
// need. Satisfied by broker.ResultPublisher.
type ResultPublisher interface {
	PublishChatResponse(ctx context.Context, resp broker.ChatResponse) error
	PublishSummaryResponse(ctx context.Context, resp broker.SummaryResponse) error
}

// Handlers processes chat and summary jobs in the worker binary. Every
// handler follows the same contract: fetch fresh state per job, persist
// the outcome, then publish the result envelope. Persist-before-publish
// means a caller that sees the envelope can immediately read consistent
// storage.
type Handlers struct {
	docs      store.DocumentStore
	sessions  store.ChatSessionStore
	apilog    store.APICallLogStore
	model     Generator
	publisher ResultPublisher

	defaultModel string
}

func NewHandlers(
	docs store.DocumentStore,
	sessions store.ChatSessionStore,
	apilog store.APICallLogStore,
	model Generator,
	publisher ResultPublisher,
	defaultModel string,
) *Handlers {
	return &Handlers{
		docs:         docs,
		sessions:     sessions,
		apilog:       apilog,
		model:        model,
		publisher:    publisher,
		defaultModel: defaultModel,
	}
}

// HandleChatTask answers one chat message. Session and document are
// fetched per job so the prompt always reflects current state.
func (h *Handlers) HandleChatTask(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var req broker.ChatRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	result, err := h.answerChat(ctx, &req)
	h.recordJob(req.CorrelationID, start, err)

	if err != nil {
		logger.Error("chat job failed", "correlation_id", req.CorrelationID, "error", err)
		return h.publisher.PublishChatResponse(ctx, broker.ChatResponse{
			CorrelationID: req.CorrelationID,
			Error:         true,
			ErrorMessage:  err.Error(),
		})
	}

	return h.publisher.PublishChatResponse(ctx, broker.ChatResponse{
		CorrelationID: req.CorrelationID,
		Result:        result,
	})
}

func (h *Handlers) answerChat(ctx context.Context, req *broker.ChatRequest) (*broker.ChatResult, error) {
	session, err := h.sessions.FindByID(ctx, req.ChatSessionID)
	if err != nil {
		return nil, fmt.Errorf("load chat session %s: %w", req.ChatSessionID, err)
	}
	doc, err := h.docs.FindByID(ctx, session.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", session.DocumentID, err)
	}
	if !doc.HasExtractedText() {
		return nil, fmt.Errorf("document %s has no extracted text", doc.ID)
	}

	modelName := req.Model
	if modelName == "" {
		modelName = h.defaultModel
	}

	answer, err := h.model.Generate(ctx, modelName, chatPrompt(doc, session.Messages, req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	reply := models.ChatMessage{
		Author:    models.AuthorModel,
		Text:      answer,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.sessions.AppendMessage(ctx, session.ID, reply); err != nil {
		return nil, fmt.Errorf("persist model reply: %w", err)
	}

	return &broker.ChatResult{
		DocumentID:    doc.ID,
		ChatSessionID: session.ID,
		Author:        reply.Author,
		CreatedAt:     reply.CreatedAt,
		Response:      answer,
	}, nil
}

// HandleSummaryTask summarizes one document. The summary and the
// completed status are written in a single update before the result is
// published.
func (h *Handlers) HandleSummaryTask(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var req broker.SummaryRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		return fmt.Errorf("decode summary request: %w", err)
	}

	summary, err := h.summarize(ctx, req.DocumentID)
	h.recordJob(req.CorrelationID, start, err)

	if err != nil {
		logger.Error("summary job failed",
			"correlation_id", req.CorrelationID, "document_id", req.DocumentID, "error", err)
		if ferr := h.docs.Fail(ctx, req.DocumentID, err.Error()); ferr != nil {
			logger.Error("failed to record summary failure", "document_id", req.DocumentID, "error", ferr)
		}
		return h.publisher.PublishSummaryResponse(ctx, broker.SummaryResponse{
			CorrelationID: req.CorrelationID,
			DocumentID:    req.DocumentID,
			Error:         true,
			ErrorMessage:  err.Error(),
		})
	}

	return h.publisher.PublishSummaryResponse(ctx, broker.SummaryResponse{
		CorrelationID: req.CorrelationID,
		DocumentID:    req.DocumentID,
		Summary:       summary,
		ModelName:     h.defaultModel,
	})
}

func (h *Handlers) summarize(ctx context.Context, documentID string) (string, error) {
	doc, err := h.docs.FindByID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("load document %s: %w", documentID, err)
	}
	if !doc.HasExtractedText() {
		return "", fmt.Errorf("document %s has no extracted text", documentID)
	}

	summary, err := h.model.Generate(ctx, h.defaultModel, summaryPrompt(doc.ExtractedText))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	if err := h.docs.CompleteWithSummary(ctx, documentID, summary); err != nil {
		return "", fmt.Errorf("persist summary: %w", err)
	}
	return summary, nil
}

// recordJob stores per-correlation job telemetry, best effort.
func (h *Handlers) recordJob(correlationID string, start time.Time, jobErr error) {
	status := 200
	msg := ""
	if jobErr != nil {
		status = 500
		msg = jobErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.apilog.RecordJobResult(ctx, correlationID, time.Since(start).Milliseconds(), status, msg); err != nil {
		logger.Warn("failed to record job telemetry", "correlation_id", correlationID, "error", err)
	}
}
