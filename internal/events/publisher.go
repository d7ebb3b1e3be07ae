package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
)

// Sink delivers an encoded event to a broker. key is the partition key; sinks
// that have no notion of partitions may ignore it.
type Sink interface {
	Publish(ctx context.Context, routingKey, key string, body []byte) error
	Close() error
}

type Sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

type EventMeta struct {
	CorrelationID string
	CausationID   string
	PartitionKey  string
}

type correlationKey struct{}

// WithCorrelationID attaches the id of the request that caused an event.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Publisher turns committed orders into OrderPlaced envelopes. It implements
// checkout.Notifier.
type Publisher struct {
	sink     Sink
	seq      Sequencer
	producer string
	logger   *slog.Logger
	timeout  time.Duration
}

type PublisherOptions struct {
	Producer string
	Logger   *slog.Logger
	Timeout  time.Duration
}

func NewPublisher(sink Sink, seq Sequencer, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = "storefront-service"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Publisher{sink: sink, seq: seq, producer: producer, logger: logger, timeout: timeout}
}

func (p *Publisher) Close() error {
	return p.sink.Close()
}

func (p *Publisher) OrderPlaced(ctx context.Context, o checkout.PlacedOrder) error {
	meta := EventMeta{
		CorrelationID: CorrelationIDFrom(ctx),
		PartitionKey:  partitionKeyForUser(o.UserID),
	}

	seq, err := p.seq.NextSequence(ctx, meta.PartitionKey)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	occurredAt := o.PlacedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	env, err := newOrderPlacedEvent(meta, seq, p.producer, orderPlacedPayload(o), occurredAt)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal OrderPlaced envelope: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.sink.Publish(pubCtx, OrderPlacedRoutingKey, meta.PartitionKey, body); err != nil {
		return fmt.Errorf("publish OrderPlaced: %w", err)
	}

	p.logger.DebugContext(ctx, "published event",
		"event", EventTypeOrderPlaced,
		"event_id", env.EventID,
		"order_id", o.OrderID,
		"sequence", seq,
	)
	return nil
}
