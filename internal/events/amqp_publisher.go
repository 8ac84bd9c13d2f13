package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const AuditQueueName = "scheduling_audit_events"

// AMQPPublisher pushes audit events onto a durable RabbitMQ queue.
type AMQPPublisher struct {
	ch  *amqp.Channel
	log *zap.Logger
	mu  sync.Mutex
}

// NewAMQPPublisher opens a channel on conn and declares the durable
// audit queue.
func NewAMQPPublisher(conn *amqp.Connection, log *zap.Logger) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		AuditQueueName, // name
		true,           // durable
		false,          // autoDelete
		false,          // exclusive
		false,          // noWait
		nil,            // args
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare audit queue: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{ch: ch, log: log}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",             // default exchange
		AuditQueueName, // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}

	p.log.Debug("audit event published",
		zap.String("type", string(ev.Type)),
		zap.String("appointment_id", ev.AppointmentID.String()))
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}
