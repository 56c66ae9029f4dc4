package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"planetcf/internal/domain/entity"
)

// AMQPQueue publishes and consumes Feed Jobs over a RabbitMQ exchange,
// for clustered deployments where the Scheduler and Fetcher run in
// separate processes. Ack/Nack/requeue map directly onto the underlying
// amqp091-go delivery methods; messages that exhaust maxAttempts are
// routed to a dead-letter exchange by republishing onto it explicitly
// (amqp091-go does not expose a retry-count header natively, so the
// attempt count travels in the message body via entity.FeedJob.Attempt).
type AMQPQueue struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queueName   string
	dlqName     string
	maxAttempts int
	logger      *slog.Logger
}

const (
	exchangeName = "planetcf.feed_jobs"
	dlxName      = "planetcf.feed_jobs.dlx"
)

// NewAMQPQueue dials amqpURL and declares the topology: a direct
// exchange, a work queue bound to it, and a dead-letter exchange/queue
// pair for exhausted retries.
func NewAMQPQueue(amqpURL, queueName string, maxAttempts int, logger *slog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	dlqName := queueName + ".dlq"

	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(dlxName, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare dlx: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare dlq: %w", err)
	}
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.QueueBind(dlqName, dlqName, dlxName, false, nil); err != nil {
		return nil, fmt.Errorf("bind dlq: %w", err)
	}

	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AMQPQueue{
		conn:        conn,
		ch:          ch,
		queueName:   queueName,
		dlqName:     dlqName,
		maxAttempts: maxAttempts,
		logger:      logger,
	}, nil
}

func (q *AMQPQueue) Publish(ctx context.Context, job entity.FeedJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal feed job: %w", err)
	}
	return q.ch.PublishWithContext(ctx, exchangeName, q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

func (q *AMQPQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	msgs, err := q.ch.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var job entity.FeedJob
				if err := json.Unmarshal(m.Body, &job); err != nil {
					q.logger.Error("amqp queue: unmarshal failed, dropping message", slog.Any("error", err))
					_ = m.Nack(false, false)
					continue
				}
				d := q.toDelivery(ctx, m, job)
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (q *AMQPQueue) toDelivery(ctx context.Context, m amqp.Delivery, job entity.FeedJob) Delivery {
	return Delivery{
		Job: job,
		Ack: func() {
			_ = m.Ack(false)
		},
		Nack: func(requeue bool, delay time.Duration) {
			if !requeue || job.Attempt+1 >= q.maxAttempts {
				q.moveToDLQ(ctx, job, m)
				return
			}
			if delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
			next := job
			next.Attempt++
			_ = q.Publish(ctx, next)
			_ = m.Ack(false)
		},
	}
}

func (q *AMQPQueue) moveToDLQ(ctx context.Context, job entity.FeedJob, m amqp.Delivery) {
	body, err := json.Marshal(job)
	if err == nil {
		_ = q.ch.PublishWithContext(ctx, dlxName, q.dlqName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	}
	_ = m.Ack(false)
}

func (q *AMQPQueue) DeadLettered(ctx context.Context) ([]entity.FeedJob, error) {
	var jobs []entity.FeedJob
	for {
		m, ok, err := q.ch.Get(q.dlqName, false)
		if err != nil {
			return jobs, fmt.Errorf("get dlq message: %w", err)
		}
		if !ok {
			break
		}
		var job entity.FeedJob
		if err := json.Unmarshal(m.Body, &job); err == nil {
			jobs = append(jobs, job)
		}
		_ = m.Ack(false)
	}
	return jobs, nil
}

func (q *AMQPQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		return err
	}
	return q.conn.Close()
}
