// Package messaging implements the job queue on Redis Streams.
package messaging

import (
	"encoding/json"
	"time"
)

// Message is the envelope carried on a stream.
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	StoryID   string            `json:"story_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage wraps a payload in a message envelope.
func NewMessage(id, msgType, storyID string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		StoryID:   storyID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload decodes the payload into v.
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream names a Redis stream.
type Stream string

const (
	StreamAnalysisJobs Stream = "stream:analysis:jobs"
)

// DLQStream returns the dead letter stream for s.
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup names a stream consumer group.
type ConsumerGroup string

const (
	ConsumerGroupAnalysisWorker ConsumerGroup = "cg-analysis-worker"
)

// MessageTypeAnalysisJob is the message type for analysis job messages.
const MessageTypeAnalysisJob = "analysis_job"

// BackoffConfig controls retry delays for failed deliveries.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig returns 1s initial, 1m cap, doubling.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff returns the delay before the given retry.
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			backoff = c.Max
			break
		}
	}
	return backoff
}
