package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/LLMontreal/llmontreal-backend/internal/broker"
	"github.com/LLMontreal/llmontreal-backend/internal/correlation"
	"github.com/LLMontreal/llmontreal-backend/internal/logger"
	"github.com/LLMontreal/llmontreal-backend/internal/store"
	"github.com/LLMontreal/llmontreal-backend/models"
)

// ErrDispatchFailed means the job message never reached the broker. The
// registry entry is rolled back before this is returned, so no waiter is
// left behind.
var ErrDispatchFailed = errors.New("job dispatch failed")

// Enqueuer is the slice of asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher turns a fire-and-forget broker publish into an awaitable:
// it registers a correlation slot, enqueues the job message, and hands
// back the pending handle. Each dispatch also opens the call-log row the
// worker later completes with job telemetry.
type Dispatcher struct {
	client   Enqueuer
	registry *correlation.Registry
	apilog   store.APICallLogStore // optional
}

func NewDispatcher(client Enqueuer, registry *correlation.Registry, apilog store.APICallLogStore) *Dispatcher {
	return &Dispatcher{client: client, registry: registry, apilog: apilog}
}

// DispatchChat submits a chat job for the session and returns the
// awaitable result handle.
func (d *Dispatcher) DispatchChat(ctx context.Context, sessionID, model, prompt string) (*correlation.Pending, error) {
	correlationID := uuid.NewString()

	task, err := broker.NewChatTask(broker.ChatRequest{
		CorrelationID: correlationID,
		ChatSessionID: sessionID,
		Model:         model,
		Prompt:        prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	pending, err := d.registry.Register(correlationID, correlation.KindChat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		d.registry.Remove(correlationID)
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	d.recordDispatch(correlationID, broker.TaskChatGenerate)
	logger.Info("Dispatched chat job", "correlation_id", correlationID, "chat_session_id", sessionID)
	return pending, nil
}

// DispatchSummary submits a summarization job for the document and
// returns the awaitable result handle.
func (d *Dispatcher) DispatchSummary(ctx context.Context, documentID string) (*correlation.Pending, error) {
	correlationID := uuid.NewString()

	task, err := broker.NewSummaryTask(broker.SummaryRequest{
		CorrelationID: correlationID,
		DocumentID:    documentID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	pending, err := d.registry.Register(correlationID, correlation.KindSummary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		d.registry.Remove(correlationID)
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	d.recordDispatch(correlationID, broker.TaskSummaryGenerate)
	logger.Info("Dispatched summary job", "correlation_id", correlationID, "document_id", documentID)
	return pending, nil
}

// recordDispatch opens the call-log row for this correlation id, best
// effort.
func (d *Dispatcher) recordDispatch(correlationID, endpoint string) {
	if d.apilog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry := &models.APICallLog{
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Endpoint:      endpoint,
	}
	if err := d.apilog.Record(ctx, entry); err != nil {
		logger.Warn("failed to record dispatch", "correlation_id", correlationID, "error", err)
	}
}
