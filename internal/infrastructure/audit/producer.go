package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("audit")

// Producer 审计事件生产者，写入 Redis Stream
type Producer struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewProducer 创建审计生产者
func NewProducer(client *redis.Client, stream string, maxLen int64) *Producer {
	if stream == "" {
		stream = "veille:audit"
	}
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Publish 发布审计事件
func (p *Producer) Publish(ctx context.Context, event Event) (string, error) {
	ctx, span := tracer.Start(ctx, "audit.Publish",
		trace.WithAttributes(
			attribute.String("stream", p.stream),
			attribute.String("event.id", event.ID),
		))
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal audit event: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish audit event: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}
