// Package amqp queues connection refresh requests on RabbitMQ so they can be
// processed outside the API process.
package amqp

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

// setup declares a durable direct exchange and a durable queue bound to it
// under the queue's own name.
func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	// One unacknowledged refresh per consumer.
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// PublishRefresh queues a refresh of connectionID and returns the message id.
func (c *Client) PublishRefresh(ctx context.Context, connectionID string) (string, error) {
	msg := NewRefreshRequest(connectionID)
	body, err := msg.ToJSON()
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.RequestedAt,
		Body:         body,
	})
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}

	log.Printf("Connection %s: refresh request %s queued on %s", connectionID, msg.ID, c.queueName)
	return msg.ID, nil
}

// ConsumeRefresh delivers refresh requests to handler until ctx is done.
// A failed request is requeued once; a redelivered request that fails again
// is dropped.
func (c *Client) ConsumeRefresh(ctx context.Context, handler func(context.Context, *RefreshRequest) error) error {
	msgs, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	log.Printf("Consuming refresh requests from %s", c.queueName)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Stopping refresh consumer: %v", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handle(ctx, delivery, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *RefreshRequest) error) {
	msg, err := RefreshRequestFromJSON(d.Body)
	if err != nil {
		log.Printf("Discarding malformed refresh request %s: %v", d.MessageId, err)
		d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		requeue := !d.Redelivered
		log.Printf("Connection %s: refresh request %s failed (requeue=%t): %v", msg.ConnectionID, msg.ID, requeue, err)
		d.Nack(false, requeue)
		return
	}

	d.Ack(false)
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
