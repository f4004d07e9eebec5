package kafkaconsumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// evictionHandler feeds one partition claim at a time through process.
// Offsets are marked only after an event was evicted or deliberately skipped.
type evictionHandler struct {
	process  func(context.Context, *sarama.ConsumerMessage) error
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func (c *Consumer) handler() *evictionHandler {
	return &evictionHandler{
		process:  c.ProcessOne,
		logger:   c.logger,
		attempts: c.cfg.EvictAttempts,
		backoff:  c.cfg.RetryBackoff,
	}
}

func (h *evictionHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info("invalidation partitions assigned",
		"member", sess.MemberID(), "generation", sess.GenerationID(), "claims", sess.Claims())
	return nil
}

func (h *evictionHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info("invalidation partitions released", "generation", sess.GenerationID())
	return nil
}

func (h *evictionHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.evict(ctx, msg); err != nil {
				// Leaving the offset unmarked ends the session; the event is
				// redelivered after the rebalance.
				return fmt.Errorf("evict %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func (h *evictionHandler) evict(ctx context.Context, msg *sarama.ConsumerMessage) error {
	attempts := max(h.attempts, 1)
	wait := h.backoff
	var err error
	for i := 1; i <= attempts; i++ {
		if err = h.process(ctx, msg); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		h.logger.Warn("eviction failed, retrying",
			"partition", msg.Partition, "offset", msg.Offset, "attempt", i, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
