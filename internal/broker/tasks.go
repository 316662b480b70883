package broker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task creators. Retries stay at zero: the worker always publishes
// exactly one result envelope per job, and a retried job would publish a
// second one for an already-resolved correlation id.

func NewChatTask(req ChatRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskChatGenerate,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Queue(QueueChat),
	), nil
}

func NewSummaryTask(req SummaryRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskSummaryGenerate,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueSummary),
	), nil
}
