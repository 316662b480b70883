package broker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/LLMontreal/llmontreal-backend/internal/correlation"
	"github.com/LLMontreal/llmontreal-backend/internal/logger"
)

// ResponseRouter consumes result envelopes from the response channels
// and resolves the matching pending entry. Envelopes for unknown ids are
// dropped by the registry; envelopes with error=true resolve the waiter
// with a RemoteError.
type ResponseRouter struct {
	rdb      *redis.Client
	registry *correlation.Registry
}

func NewResponseRouter(rdb *redis.Client, registry *correlation.Registry) *ResponseRouter {
	return &ResponseRouter{rdb: rdb, registry: registry}
}

// Start subscribes to both response channels and routes messages until
// ctx is done.
func (rt *ResponseRouter) Start(ctx context.Context) error {
	sub := rt.rdb.Subscribe(ctx, ChatResponseChannel, SummaryResponseChannel)
	// Force the subscription to be established before we report started.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				rt.route(msg.Channel, []byte(msg.Payload))
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (rt *ResponseRouter) route(channel string, payload []byte) {
	switch channel {
	case ChatResponseChannel:
		var resp ChatResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			logger.Error("Malformed chat response envelope", "error", err)
			return
		}
		logger.Info("Received chat response", "correlation_id", resp.CorrelationID, "error", resp.Error)
		rt.registry.Resolve(resp.CorrelationID, outcomeFor(resp.Error, resp.ErrorMessage, payload))

	case SummaryResponseChannel:
		var resp SummaryResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			logger.Error("Malformed summary response envelope", "error", err)
			return
		}
		logger.Info("Received summary response", "correlation_id", resp.CorrelationID, "error", resp.Error)
		rt.registry.Resolve(resp.CorrelationID, outcomeFor(resp.Error, resp.ErrorMessage, payload))

	default:
		logger.Warn("Response on unexpected channel", "channel", channel)
	}
}

func outcomeFor(isErr bool, msg string, payload []byte) correlation.Outcome {
	if isErr {
		return correlation.Outcome{Err: &RemoteError{Message: msg}}
	}
	return correlation.Outcome{Payload: json.RawMessage(payload)}
}
