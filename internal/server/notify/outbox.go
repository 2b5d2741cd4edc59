package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/chatauth/internal/logging"
)

// ErrOutboxEmpty is returned by Pop when nothing arrived before the timeout.
var ErrOutboxEmpty = errors.New("outbox empty")

// Outbox implements Notifier by queueing rendered messages on a Redis list.
// The request path only pays for one LPUSH; delivery happens in Dispatcher.
type Outbox struct {
	rdb      redis.Cmdable
	key      string
	renderer *Renderer
	logger   logging.Logger
}

func NewOutbox(rdb redis.Cmdable, key string, renderer *Renderer, logger logging.Logger) *Outbox {
	return &Outbox{rdb: rdb, key: key, renderer: renderer, logger: logger.With("module", "outbox")}
}

func (o *Outbox) SendVerificationEmail(ctx context.Context, to, username, token string) bool {
	msg, err := o.renderer.Verification(to, username, token)
	return o.enqueue(ctx, msg, err)
}

func (o *Outbox) SendPasswordResetEmail(ctx context.Context, to, username, token string) bool {
	msg, err := o.renderer.PasswordReset(to, username, token)
	return o.enqueue(ctx, msg, err)
}

func (o *Outbox) SendWelcomeEmail(ctx context.Context, to, username string) bool {
	msg, err := o.renderer.Welcome(to, username)
	return o.enqueue(ctx, msg, err)
}

// Push queues msg.
func (o *Outbox) Push(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := o.rdb.LPush(ctx, o.key, data).Err(); err != nil {
		return fmt.Errorf("lpush message: %w", err)
	}
	return nil
}

// Pop blocks until a message is available or timeout is reached.
func (o *Outbox) Pop(ctx context.Context, timeout time.Duration) (*Message, error) {
	result, err := o.rdb.BRPop(ctx, timeout, o.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrOutboxEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("brpop message: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("invalid brpop response: %v", result)
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// Len reports the number of queued messages.
func (o *Outbox) Len(ctx context.Context) (int64, error) {
	return o.rdb.LLen(ctx, o.key).Result()
}

func (o *Outbox) enqueue(ctx context.Context, msg *Message, renderErr error) bool {
	if renderErr != nil {
		o.logger.Warn(ctx, "email not queued", "error", renderErr)
		return false
	}
	if err := o.Push(ctx, msg); err != nil {
		o.logger.Warn(ctx, "email not queued", "kind", msg.Kind, "message_id", msg.ID, "error", err)
		return false
	}
	o.logger.Debug(ctx, "email queued", "kind", msg.Kind, "message_id", msg.ID)
	return true
}
