package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream audit records land on when no name is
// configured.
const DefaultStream = "audit:pocket"

// StreamEmitter appends audit records to a Redis stream consumed by the
// school-wide audit trail.
type StreamEmitter struct {
	client *redis.Client
	stream string
}

// NewStreamEmitter constructs a Redis Streams audit sink.
func NewStreamEmitter(client *redis.Client, stream string) *StreamEmitter {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamEmitter{client: client, stream: stream}
}

// Emit appends one record to the stream.
func (e *StreamEmitter) Emit(ctx context.Context, record Record) error {
	err := e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		Values: map[string]interface{}{
			"school_id":     record.SchoolID,
			"student_id":    record.StudentID,
			"actor_user_id": record.ActorID,
			"action":        record.Action,
			"type":          record.Changes.Type,
			"amount":        record.Changes.Amount,
			"balance_after": record.Changes.BalanceAfter,
			"timestamp":     record.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("append audit stream %s: %w", e.stream, err)
	}
	return nil
}
