package messaging

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// Message is one delivery handed to a Handler.
type Message struct {
	RoutingKey string
	Body       []byte
}

// Handler processes one delivery. A nil return acks the message; an error
// nacks it back onto the queue, so delivery is at least once and handlers
// must tolerate reprocessing.
type Handler func(ctx context.Context, msg Message) error

// Consume declares a durable queue, binds it to the exchange under the given
// routing keys, and processes deliveries one at a time until ctx is done.
func (c *Client) Consume(ctx context.Context, queue string, routingKeys []string, handler Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(queue, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", queue, key, err)
		}
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for queue %s closed", queue)
			}

			err := c.processDelivery(ctx, queue, delivery.RoutingKey, delivery.Headers, delivery.Body, handler)
			if err != nil {
				// Requeue for redelivery; the handler is expected to
				// swallow anything that cannot succeed on retry.
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (c *Client) processDelivery(ctx context.Context, queue, routingKey string, headers map[string]any, body []byte, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier(headers))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+routingKey,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemRabbitmq,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(queue),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
		),
	)
	defer span.End()

	if err := handler(spanCtx, Message{RoutingKey: routingKey, Body: body}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
