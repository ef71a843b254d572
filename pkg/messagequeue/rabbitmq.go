package messagequeue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQService publishes events to a durable topic exchange.
type RabbitMQService struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger

	mu sync.Mutex
}

// NewRabbitMQServiceConfig contains options for creating a new RabbitMQService.
type NewRabbitMQServiceConfig struct {
	URL      string
	Exchange string
}

// NewRabbitMQService connects, opens a channel and declares the exchange.
func NewRabbitMQService(cfg NewRabbitMQServiceConfig, logger *zap.Logger) (*RabbitMQService, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	logger.Info("Successfully connected to RabbitMQ", zap.String("exchange", cfg.Exchange))
	return &RabbitMQService{conn: conn, channel: ch, exchange: cfg.Exchange, logger: logger}, nil
}

// Publish wraps data in an Event and sends it with the given routing key.
func (s *RabbitMQService) Publish(ctx context.Context, routingKey string, data any) error {
	event := NewEvent(routingKey, data)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", routingKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.channel.PublishWithContext(ctx,
		s.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Type:         routingKey,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", routingKey, err)
	}
	s.logger.Debug("Published event", zap.String("routing_key", routingKey), zap.String("event_id", event.ID))
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (s *RabbitMQService) Close() error {
	var lastErr error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ channel", zap.Error(err))
			lastErr = err
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ connection", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
