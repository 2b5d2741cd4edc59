package notify

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/chatauth/internal/logging"
)

// Dispatcher drains the outbox and hands each message to a Sender. Delivery
// is best effort: a failed message is logged and dropped.
type Dispatcher struct {
	outbox      *Outbox
	sender      Sender
	pollTimeout time.Duration
	logger      logging.Logger
}

func NewDispatcher(outbox *Outbox, sender Sender, pollTimeout time.Duration, logger logging.Logger) *Dispatcher {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Dispatcher{
		outbox:      outbox,
		sender:      sender,
		pollTimeout: pollTimeout,
		logger:      logger.With("module", "dispatcher"),
	}
}

// Run processes messages until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info(ctx, "mail dispatcher started")
	defer d.logger.Info(context.WithoutCancel(ctx), "mail dispatcher stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		_, err := d.ProcessOne(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		d.logger.Error(ctx, "outbox read failed", "error", err)
		// back off so an unavailable Redis does not spin the loop
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.pollTimeout):
		}
	}
}

// ProcessOne waits for one message and delivers it. It reports whether a
// message was taken from the outbox. Send failures are logged, not returned.
func (d *Dispatcher) ProcessOne(ctx context.Context) (bool, error) {
	msg, err := d.outbox.Pop(ctx, d.pollTimeout)
	if errors.Is(err, ErrOutboxEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Warn(ctx, "email delivery failed", "kind", msg.Kind, "message_id", msg.ID, "error", err)
		return true, nil
	}
	d.logger.Info(ctx, "email sent", "kind", msg.Kind, "message_id", msg.ID)
	return true, nil
}
