package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	mu           sync.Mutex
	url          string
	exchangeName string
	queueName    string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name for a direct exchange
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// reconnect rebuilds the connection after a broker failure, with capped
// exponential backoff between attempts.
func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; ; attempt++ {
		if err := c.connect(); err == nil {
			slog.InfoContext(ctx, "AMQP reconnected", "attempt", attempt)
			return nil
		} else if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP reconnect failed, retrying", "attempt", attempt, "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d <= 0 || d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// isConnectionError reports whether the error looks like a broken broker
// connection rather than a protocol or application failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection closed",
		"eof",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// PublishTransactionSync publishes a mirror request for a transaction.
func (c *Client) PublishTransactionSync(ctx context.Context, id int64) error {
	body, err := encodeSync(NewTransactionSyncMessage(id))
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published transaction sync message",
		"id", id,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishTransactionDelete publishes a removal request for a mirrored row.
func (c *Client) PublishTransactionDelete(ctx context.Context, id, userID int64) error {
	body, err := encodeDelete(NewTransactionDeleteMessage(id, userID))
	if err != nil {
		return fmt.Errorf("marshal delete message: %w", err)
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published transaction delete message",
		"id", id,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// SyncHandler processes a mirror request.
type SyncHandler func(ctx context.Context, msg *TransactionSyncMessage) error

// DeleteHandler processes a removal request.
type DeleteHandler func(ctx context.Context, msg *TransactionDeleteMessage) error

// ConsumeMessages delivers queued messages to the handlers with manual acks.
// Malformed messages are rejected without requeue; handler failures requeue.
// The loop reconnects on broker failures and returns when ctx is done.
func (c *Client) ConsumeMessages(ctx context.Context, onSync SyncHandler, onDelete DeleteHandler) error {
	for {
		err := c.consumeOnce(ctx, onSync, onDelete)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case isConnectionError(err):
			slog.WarnContext(ctx, "AMQP consume interrupted, reconnecting", "error", err)
			if rerr := c.reconnect(ctx); rerr != nil {
				return rerr
			}
		default:
			return err
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, onSync SyncHandler, onDelete DeleteHandler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (manual ack wanted)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming backup messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.handleDelivery(ctx, delivery, onSync, onDelete)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, onSync SyncHandler, onDelete DeleteHandler) {
	env, err := decodeEnvelope(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		delivery.Nack(false, false) // reject, don't requeue
		return
	}

	switch env.Kind {
	case KindSync:
		var msg TransactionSyncMessage
		if err := json.Unmarshal(env.Sync, &msg); err != nil {
			slog.ErrorContext(ctx, "Malformed sync message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := onSync(ctx, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle sync message", "error", err, "id", msg.ID)
			delivery.Nack(false, true) // requeue
			return
		}
	case KindDelete:
		var msg TransactionDeleteMessage
		if err := json.Unmarshal(env.Delete, &msg); err != nil {
			slog.ErrorContext(ctx, "Malformed delete message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := onDelete(ctx, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle delete message", "error", err, "id", msg.ID)
			delivery.Nack(false, true)
			return
		}
	default:
		slog.ErrorContext(ctx, "Unknown message kind", "kind", env.Kind)
		delivery.Nack(false, false)
		return
	}

	delivery.Ack(false)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
