package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"job_harvester/internal/domain"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// ErrNotConfirmed is returned when the broker nacks a published job.
var ErrNotConfirmed = errors.New("broker did not confirm message")

// RabbitMQ publishes a JobMessage per saved job on a durable direct exchange.
// The channel runs in confirm mode, so Publish returns once the broker has
// taken the message.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
	now        func() time.Time
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// JobMessage is the body of every event. Action is ActionCreate or ActionUpdate.
type JobMessage struct {
	Action    string           `json:"action"`
	Job       domain.JobRecord `json:"job"`
	RunID     string           `json:"run_id"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (_ *RabbitMQ, err error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, cfg); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	logger = logger.With("component", "rabbitmq", "exchange", cfg.Exchange)
	logger.Info("job events enabled", "queue", cfg.QueueName, "routing_key", cfg.RoutingKey)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// declareTopology makes the exchange, the queue and their binding durable.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	const durable, autoDelete, internal, exclusive, noWait = true, false, false, false, false

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, durable, autoDelete, exclusive, noWait, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return nil
}

func (r *RabbitMQ) Publish(ctx context.Context, event domain.JobEvent) error {
	msg, err := newPublishing(event, r.now().UTC())
	if err != nil {
		return err
	}

	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, r.exchange, r.routingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("publish job %s: %w", event.Job.SourceURL, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm of job %s: %w", event.Job.SourceURL, err)
	}
	if !acked {
		return fmt.Errorf("publish job %s: %w", event.Job.SourceURL, ErrNotConfirmed)
	}

	r.logger.Debug("published job", "source_url", event.Job.SourceURL, "type", msg.Type)
	return nil
}

func newPublishing(event domain.JobEvent, now time.Time) (amqp.Publishing, error) {
	action := ActionUpdate
	if event.Created {
		action = ActionCreate
	}

	body, err := json.Marshal(JobMessage{
		Action:    action,
		Job:       event.Job,
		RunID:     event.RunID,
		Timestamp: now,
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal job message: %w", err)
	}

	return amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		Type:          "job." + action,
		CorrelationId: event.RunID,
		Timestamp:     now,
		Headers: amqp.Table{
			"category":  event.Job.Category,
			"source_id": event.Job.SourceID,
		},
		Body: body,
	}, nil
}

// Close releases the channel and then the connection.
func (r *RabbitMQ) Close() error {
	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}
