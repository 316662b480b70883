package broker

import (
	"time"
)

// asynq task types carrying job messages to the worker process.
const (
	TaskChatGenerate    = "chat:generate"
	TaskSummaryGenerate = "summary:generate"
)

// asynq queues. Summaries gate document completion, so they outrank chat.
const (
	QueueChat    = "chat"
	QueueSummary = "summary"
)

// Redis pub/sub channels carrying result messages back to the caller
// process.
const (
	ChatResponseChannel    = "chat.response"
	SummaryResponseChannel = "summary.response"
)

// ChatRequest is the chat job message.
type ChatRequest struct {
	CorrelationID string `json:"correlationId"`
	ChatSessionID string `json:"chatSessionId"`
	Model         string `json:"model"`
	Prompt        string `json:"prompt"`
}

// ChatResult is the successful chat payload.
type ChatResult struct {
	DocumentID    string    `json:"documentId"`
	ChatSessionID string    `json:"chatSessionId"`
	Author        string    `json:"author"`
	CreatedAt     time.Time `json:"createdAt"`
	Response      string    `json:"response"`
}

// ChatResponse is the chat result envelope published on ChatResponseChannel.
type ChatResponse struct {
	CorrelationID string      `json:"correlationId"`
	Error         bool        `json:"error"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	Result        *ChatResult `json:"result,omitempty"`
}

// SummaryRequest is the summarization job message. Only the document id
// travels on the wire; the worker fetches the extracted text at job time
// so concurrent sessions never see stale shared context.
type SummaryRequest struct {
	CorrelationID string `json:"correlationId"`
	DocumentID    string `json:"documentId"`
}

// SummaryResponse is the summary result envelope published on
// SummaryResponseChannel.
type SummaryResponse struct {
	CorrelationID string `json:"correlationId"`
	DocumentID    string `json:"documentId"`
	Error         bool   `json:"error"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	Summary       string `json:"summary,omitempty"`
	ModelName     string `json:"modelName,omitempty"`
}

// RemoteError is a worker-reported failure carried back through a result
// envelope.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote job failed: " + e.Message
}
