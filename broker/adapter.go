// Package broker adapts the orchestrator to an AMQP 0-9-1 broker: topology
// declaration, publish with delivery confirmation, and a single bounded
// results consumer.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/logging"
	"github.com/fpgaforge/orchestrator/resilience"
)

// Config holds connection and runtime parameters for the adapter.
type Config struct {
	URL                   string
	Prefetch              int
	PublishConfirmTimeout time.Duration
	RetryConfig           resilience.RetryConfig
}

func DefaultConfig(url string) Config {
	return Config{
		URL:                   url,
		Prefetch:              10,
		PublishConfirmTimeout: 5 * time.Second,
		RetryConfig:           resilience.DefaultRetryConfig(),
	}
}

// Adapter is the orchestrator's sole connection to the broker. It is safe
// for concurrent Publish calls; Consume is meant to be called once.
type Adapter struct {
	cfg     Config
	logger  logging.Logger
	breaker *resilience.CircuitBreaker

	conn *amqp.Connection
	ch   *amqp.Channel
}

// Adapter satisfies the orchestrator's narrower Publisher interface.
type publisherCheck interface {
	Publish(ctx context.Context, msg contracts.TaskMessage) error
	Close() error
}

var _ publisherCheck = (*Adapter)(nil)

func NewAdapter(cfg Config, logger logging.Logger) *Adapter {
	return &Adapter{
		cfg:     cfg,
		logger:  logger,
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second),
	}
}

// Connect dials the broker, opens a confirm-mode channel, and declares
// topology. It is idempotent: calling it again after a successful connect
// is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.conn != nil && !a.conn.IsClosed() {
		return nil
	}
	return resilience.Retry(ctx, a.cfg.RetryConfig, func() error {
		if err := a.breaker.Allow(); err != nil {
			return err
		}
		conn, err := amqp.Dial(a.cfg.URL)
		if err != nil {
			a.breaker.RecordFailure()
			return fmt.Errorf("broker: dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			a.breaker.RecordFailure()
			return fmt.Errorf("broker: open channel: %w", err)
		}
		if err := ch.Confirm(false); err != nil {
			ch.Close()
			conn.Close()
			a.breaker.RecordFailure()
			return fmt.Errorf("broker: enable confirm mode: %w", err)
		}
		if err := ch.Qos(a.cfg.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			a.breaker.RecordFailure()
			return fmt.Errorf("broker: set qos: %w", err)
		}
		if err := declareTopology(ch); err != nil {
			ch.Close()
			conn.Close()
			a.breaker.RecordFailure()
			return fmt.Errorf("broker: declare topology: %w", err)
		}
		a.conn = conn
		a.ch = ch
		a.breaker.RecordSuccess()
		a.logger.Info("connected to broker", map[string]any{"url": a.cfg.URL})
		return nil
	})
}

// Close tears down the channel and connection.
func (a *Adapter) Close() error {
	if a.ch != nil {
		a.ch.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

// Publish sends msg to the queue bound for its EntityType, with persistent
// delivery mode and a priority header, and waits for broker confirmation.
func (a *Adapter) Publish(ctx context.Context, msg contracts.TaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return &PublishError{TaskID: msg.TaskID, Err: err}
	}

	confirmCtx, cancel := context.WithTimeout(ctx, a.cfg.PublishConfirmTimeout)
	defer cancel()

	confirm, err := a.ch.PublishWithDeferredConfirmWithContext(confirmCtx, TasksExchange, string(msg.EntityType), true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     uint8(msg.Priority),
		MessageId:    msg.TaskID,
		CorrelationId: msg.CorrelationID,
		Body:         body,
	})
	if err != nil {
		return &PublishError{TaskID: msg.TaskID, Err: err}
	}

	ok, err := confirm.WaitContext(confirmCtx)
	if err != nil {
		return &PublishError{TaskID: msg.TaskID, Err: err}
	}
	if !ok {
		return &PublishError{TaskID: msg.TaskID, Err: fmt.Errorf("broker returned nack for publish confirmation")}
	}
	return nil
}

// Delivery is the subset of an AMQP delivery the orchestrator loop needs:
// the decoded result and the means to ack or nack the original message.
// Ack/Nack are held as closures rather than a raw amqp.Delivery so tests
// can construct deliveries without a live channel.
type Delivery struct {
	Result   contracts.ResultMessage
	ackFunc  func() error
	nackFunc func() error
}

func NewDelivery(result contracts.ResultMessage, ack, nack func() error) Delivery {
	return Delivery{Result: result, ackFunc: ack, nackFunc: nack}
}

func (d Delivery) Ack() error {
	if d.ackFunc == nil {
		return nil
	}
	return d.ackFunc()
}

func (d Delivery) Nack() error {
	if d.nackFunc == nil {
		return nil
	}
	return d.nackFunc()
}

// Consume starts the single results consumer and returns a channel of
// decoded deliveries. Envelopes that fail to decode are nacked immediately
// and never reach the returned channel.
func (a *Adapter) Consume(ctx context.Context) (<-chan Delivery, error) {
	deliveries, err := a.ch.ConsumeWithContext(ctx, QueueResults, "", false, false, false, false, nil)
	if err != nil {
		return nil, &ConsumeError{Err: err}
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range deliveries {
			d := d
			var result contracts.ResultMessage
			if err := json.Unmarshal(d.Body, &result); err != nil {
				a.logger.Warn("malformed result envelope, nacking to DLQ", map[string]any{"error": err.Error()})
				d.Nack(false, false)
				continue
			}
			delivery := NewDelivery(result,
				func() error { return d.Ack(false) },
				func() error { return d.Nack(false, false) },
			)
			select {
			case out <- delivery:
			case <-ctx.Done():
				d.Nack(false, false)
				return
			}
		}
	}()
	return out, nil
}
