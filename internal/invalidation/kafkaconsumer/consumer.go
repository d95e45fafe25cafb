// Package kafkaconsumer drops cached layer configs when the CMS publishes a
// change event on kafka.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/tms-layers/internal/core/observability"
	"github.com/mohammed-shakir/tms-layers/internal/invalidation"
	mylog "github.com/mohammed-shakir/tms-layers/internal/logger"
)

// Invalidator drops whatever is cached for a record. InvalidateDataset
// returns the number of layers it touched.
type Invalidator interface {
	InvalidateLayer(ctx context.Context, id string) error
	InvalidateDataset(ctx context.Context, id string) (int, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	inv    Invalidator
	dedupe *revisionDedupe

	mu       sync.RWMutex
	assigned bool
	parts    []int32

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, logger *slog.Logger, inv Invalidator) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Consumer{
		cfg:    cfg,
		logger: logger.With("logger", "kafka_consumer"),
		inv:    inv,
		dedupe: newRevisionDedupe(cfg.DedupeSize),
	}
}

// Start joins the consumer group and consumes in the background until ctx is
// canceled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.inv == nil {
		return errors.New("kafkaconsumer: invalidator is required")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" || c.cfg.GroupID == "" {
		return errors.New("kafkaconsumer: brokers, topic and group id are required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "tms-layers"
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(mylog.WithComponent(ctx, "kafka_consumer"))
	c.cancel = cancel
	h := c.handler()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.logger.Error("kafka consumer group close", slog.Any("error", err))
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil {
				obs.IncKafkaConsumerError("consume")
				c.logger.ErrorContext(ctx, "kafka consume error",
					slog.Any("brokers", c.cfg.Brokers), slog.String("topic", c.cfg.Topic), slog.Any("error", err))
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			obs.IncKafkaConsumerError("group")
			c.logger.Error("kafka group error", slog.Any("error", err))
		}
	}()

	c.logger.Info("kafka invalidation consumer started",
		slog.Any("brokers", c.cfg.Brokers), slog.String("topic", c.cfg.Topic), slog.String("group", c.cfg.GroupID))
	return nil
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("kafka invalidation consumer stopped")
}

// Readiness reports whether the group session is up and which partitions of
// the topic this instance owns.
func (c *Consumer) Readiness() (bool, []int32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.assigned {
		return false, nil
	}
	return true, slices.Clone(c.parts)
}

func (c *Consumer) handler() *groupHandler {
	return &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			parts := slices.Clone(sess.Claims()[c.cfg.Topic])
			slices.Sort(parts)
			c.mu.Lock()
			c.assigned, c.parts = true, parts
			c.mu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			c.mu.Lock()
			c.assigned, c.parts = false, nil
			c.mu.Unlock()
		},
		process: c.ProcessOne,
	}
}

// ProcessOne applies one message. Malformed and invalid events are logged and
// skipped; only a failed invalidation is returned as an error, which leaves
// the message unmarked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if !msg.Timestamp.IsZero() {
		obs.SetInvalidationLagSeconds(time.Since(msg.Timestamp).Seconds())
	}

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError("decode")
		c.logger.ErrorContext(ctx, "kafka message decode failed",
			slog.String("topic", msg.Topic), slog.Int("partition", int(msg.Partition)),
			slog.Int64("offset", msg.Offset), slog.Any("error", err))
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaConsumerError("validate")
		c.logger.ErrorContext(ctx, "invalid invalidation event",
			slog.String("topic", msg.Topic), slog.Int("partition", int(msg.Partition)),
			slog.Int64("offset", msg.Offset), slog.Any("error", err))
		return nil
	}

	if !c.dedupe.shouldApply(ev.Key(), ev.Revision) {
		obs.ObserveInvalidation(ev.Kind, "skip_stale", 0, nil)
		c.logger.DebugContext(ctx, "stale invalidation event skipped",
			slog.String("kind", ev.Kind), slog.String("id", ev.ID), slog.Uint64("revision", ev.Revision))
		return nil
	}

	layers, err := c.apply(ctx, ev)
	obs.ObserveInvalidation(ev.Kind, ev.Op, layers, err)
	if err != nil {
		obs.IncKafkaConsumerError("invalidate")
		return fmt.Errorf("invalidate %s: %w", ev.Key(), err)
	}
	c.dedupe.applied(ev.Key(), ev.Revision)

	c.logger.InfoContext(ctx, "invalidated cached configs",
		slog.String("kind", ev.Kind), slog.String("op", ev.Op),
		slog.String("id", ev.ID), slog.Int("layers", layers))
	return nil
}

func (c *Consumer) apply(ctx context.Context, ev invalidation.Event) (int, error) {
	switch ev.Kind {
	case invalidation.KindLayer:
		if err := c.inv.InvalidateLayer(mylog.WithLayerID(ctx, ev.ID), ev.ID); err != nil {
			return 0, err
		}
		return 1, nil
	case invalidation.KindDataset:
		return c.inv.InvalidateDataset(ctx, ev.ID)
	default:
		return 0, fmt.Errorf("unsupported kind %q", ev.Kind)
	}
}
