// Package kafkaproducer publishes layer and dataset change events.
package kafkaproducer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/tms-layers/internal/invalidation"
)

type Config struct {
	Brokers   []string
	Topic     string
	QueueSize int
}

type Publisher struct {
	topic   string
	events  chan invalidation.Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	failed  atomic.Int64
	stopped chan struct{}
	errDone chan struct{}
}

func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafkaproducer: brokers and topic are required")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_5_0_0
	sc.ClientID = "tms-layers"
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Errors = true
	sc.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafkaproducer: create async producer: %w", err)
	}
	return newPublisher(prod, cfg.Topic, cfg.QueueSize, logger), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan invalidation.Event, queueSize),
		prod:    prod,
		logger:  logger.With("logger", "kafka_producer"),
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.failed.Add(1)
				p.logger.Error("marshal change event", slog.String("key", ev.Key()), slog.Any("error", err))
				continue
			}
			// keyed by record so every change of one record lands on one partition
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Key()),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err == nil {
				continue
			}
			p.failed.Add(1)
			p.logger.Error("publish change event", slog.Any("error", err.Err))
		}
	}()

	return p
}

// Publish validates ev and queues it, blocking while the queue is full. A
// zero TS is stamped with the current time. Publish must not be called after
// Close.
func (p *Publisher) Publish(ctx context.Context, ev invalidation.Event) error {
	if ev.Version == 0 {
		ev.Version = 1
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid change event %s: %w", ev.Key(), err)
	}
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes queued events and reports how many could not be delivered.
func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	closeErr := p.prod.Close()
	<-p.errDone

	var pe sarama.ProducerErrors
	if errors.As(closeErr, &pe) {
		p.failed.Add(int64(len(pe)))
		closeErr = nil
	}
	if closeErr != nil {
		return fmt.Errorf("kafkaproducer: close producer: %w", closeErr)
	}
	if n := p.failed.Load(); n > 0 {
		return fmt.Errorf("kafkaproducer: %d change events not delivered", n)
	}
	return nil
}
