package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer publishes messages to Redis streams.
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer creates a producer. Streams are trimmed approximately to
// maxLen entries.
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish appends a message to the stream.
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishAnalysisJob enqueues an analysis job for the worker.
func (p *Producer) PublishAnalysisJob(ctx context.Context, job *AnalysisJobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, MessageTypeAnalysisJob, job.StoryID, job)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("method", job.Method)

	return p.Publish(ctx, StreamAnalysisJobs, msg)
}

// AnalysisJobMessage is the queue payload for one analysis job.
type AnalysisJobMessage struct {
	JobID             string `json:"job_id"`
	StoryID           string `json:"story_id"`
	LastChapterNumber int    `json:"last_chapter_number"`
	Method            string `json:"method"`
}
