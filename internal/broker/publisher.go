package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ResultPublisher publishes result envelopes from the worker process
// back to whichever caller process holds the matching pending entry.
type ResultPublisher struct {
	rdb *redis.Client
}

func NewResultPublisher(rdb *redis.Client) *ResultPublisher {
	return &ResultPublisher{rdb: rdb}
}

func (p *ResultPublisher) PublishChatResponse(ctx context.Context, resp ChatResponse) error {
	return p.publish(ctx, ChatResponseChannel, resp)
}

func (p *ResultPublisher) PublishSummaryResponse(ctx context.Context, resp SummaryResponse) error {
	return p.publish(ctx, SummaryResponseChannel, resp)
}

func (p *ResultPublisher) publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", channel, err)
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}
