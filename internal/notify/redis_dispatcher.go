package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

// envelope is the wire form pushed onto the delivery queue.
type envelope struct {
	ID         string    `json:"id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Message
}

// RedisDispatcher pushes notification envelopes onto a Redis list consumed
// by external delivery workers.
type RedisDispatcher struct {
	client *redis.Client
	queue  string
	logger *zap.Logger
}

// NewRedisDispatcher builds the dispatcher.
func NewRedisDispatcher(client *redis.Client, queue string, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, queue: queue, logger: logger}
}

// Send enqueues the message. Failures are returned, not swallowed, so the
// escalation scanner can leave its flag unset and retry next tick.
func (d *RedisDispatcher) Send(ctx context.Context, msg Message) error {
	env := envelope{
		ID:         uuid.NewString(),
		EnqueuedAt: time.Now(),
		Message:    msg,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return apperrors.NewNotificationError(err)
	}
	if err := d.client.LPush(ctx, d.queue, raw).Err(); err != nil {
		d.logger.Warn("notification enqueue failed",
			zap.String("queue", d.queue),
			zap.String("submission_id", msg.SubmissionID),
			zap.Error(err))
		return apperrors.NewNotificationError(err)
	}
	return nil
}
