// Package kafkaconsumer evicts cached by-id responses when detections or
// clusters change upstream.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	obs "github.com/mohammed-shakir/streetview-viewport/internal/core/observability"
	"github.com/mohammed-shakir/streetview-viewport/internal/invalidation"
	mylog "github.com/mohammed-shakir/streetview-viewport/internal/logger"
)

// Evicter drops cached responses for ids; the service client implements it.
type Evicter interface {
	Invalidate(ctx context.Context, dt model.DataType, ids ...int64) (int, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	evict  Evicter
}

func New(cfg Config, logger *slog.Logger, evict Evicter) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg.withDefaults(), logger: logger, evict: evict}
}

// Start consumes change events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.evict == nil {
		return errors.New("kafkaconsumer: missing evicter")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := c.handler()
	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			obs.IncConsumerError("consume")
			c.logger.Error("consumer error", "err", err, "topic", c.cfg.Topic)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		}
	}
}

// ProcessOne handles a single change event. Malformed events are logged and
// skipped; eviction failures are returned so the message is not marked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ctx = mylog.WithComponent(ctx, "kafka_consumer")

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncConsumerError("decode")
		c.logger.WarnContext(ctx, "skipping undecodable event",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncConsumerError("validate")
		c.logger.WarnContext(ctx, "skipping invalid event",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}

	n, err := c.evict.Invalidate(ctx, ev.DataType, ev.IDs...)
	obs.ObserveInvalidation(ev.DataType.Label(), n, err)
	if err != nil {
		obs.IncConsumerError("evict")
		return fmt.Errorf("evict %s: %w", ev.DataType, err)
	}
	c.logger.DebugContext(ctx, "invalidated responses",
		"data_type", ev.DataType.Label(), "op", ev.Op, "ids", len(ev.IDs), "keys", n)
	return nil
}
