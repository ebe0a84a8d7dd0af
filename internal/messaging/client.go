package messaging

import (
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the durable direct exchange carrying all order and stock
// events.
const DefaultExchange = "ecomm.events"

const (
	defaultConnectAttempts = 10
	defaultConnectDelay    = 5 * time.Second
)

type Config struct {
	URL             string
	Exchange        string
	ConnectAttempts int
	ConnectDelay    time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = defaultConnectAttempts
	}
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = defaultConnectDelay
	}
	return cfg
}

// Client owns one broker connection, the publishing channel, and the exchange
// declaration. Each Consume call opens its own channel.
type Client struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects to the broker with a bounded retry loop and declares the
// durable direct exchange. It returns an error once all attempts are
// exhausted; callers decide whether that is fatal or a degraded start.
func Dial(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		client, err := dialOnce(cfg)
		if err == nil {
			logger.Info("connected to message broker", "exchange", cfg.Exchange, "attempt", attempt)
			return client, nil
		}

		lastErr = err
		logger.Warn("failed to connect to message broker",
			"error", err, "attempt", attempt, "max_attempts", cfg.ConnectAttempts)

		if attempt < cfg.ConnectAttempts {
			time.Sleep(cfg.ConnectDelay)
		}
	}

	return nil, fmt.Errorf("connect to broker after %d attempts: %w", cfg.ConnectAttempts, lastErr)
}

func dialOnce(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	return &Client{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

func (c *Client) Close() error {
	if err := c.ch.Close(); err != nil {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}
