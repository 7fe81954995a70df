package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"
)

const progressExchange = "session_updates"

type SessionProgress struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Processed int       `json:"processed"`
	Remaining int64     `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier broadcasts batch progress. Publishing is best-effort and never
// affects the batch result.
type Notifier interface {
	PublishProgress(ctx context.Context, progress SessionProgress)
	Close() error
}

type amqpNotifier struct {
	conn *amqp.Connection
}

func NewAMQPNotifier(url string) (Notifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(progressExchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &amqpNotifier{conn: conn}, nil
}

func (n *amqpNotifier) PublishProgress(_ context.Context, progress SessionProgress) {
	if progress.Timestamp.IsZero() {
		progress.Timestamp = time.Now()
	}
	if err := n.publish(progress); err != nil {
		log.Printf("⚠️  Failed to publish progress for session %s: %v\n", progress.SessionID, err)
	}
}

func (n *amqpNotifier) publish(progress SessionProgress) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(progress)
	if err != nil {
		return err
	}

	return ch.Publish(
		progressExchange,
		fmt.Sprintf("session.%s", progress.SessionID),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   progress.Timestamp,
			Body:        body,
		},
	)
}

func (n *amqpNotifier) Close() error {
	return n.conn.Close()
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) PublishProgress(context.Context, SessionProgress) {}
func (noopNotifier) Close() error                                     { return nil }
