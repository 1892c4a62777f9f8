package mailqueue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/studycircle/studycircle-api/pkg/mailer"
)

// consumerPrefetch bounds unacked deliveries per worker channel.
const consumerPrefetch = 16

// Queue is the durable RabbitMQ queue carrying mailer.EmailJob payloads
// between the API and cmd/mailworker. Both sides declare through Dial, so
// the queue definition cannot drift between publisher and consumer.
type Queue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
}

func Dial(url, name string) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Queue{conn: conn, ch: ch, name: name}, nil
}

func (q *Queue) Close() {
	if q == nil {
		return
	}
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

// Publish enqueues one job as a persistent JSON message.
func (q *Queue) Publish(ctx context.Context, job mailer.EmailJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.ch.PublishWithContext(ctx,
		"",     // default exchange
		q.name, // routing key = queue
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}

// Consume opens the delivery stream with manual acks and a bounded prefetch.
func (q *Queue) Consume() (<-chan amqp.Delivery, error) {
	if err := q.ch.Qos(consumerPrefetch, 0, false); err != nil {
		return nil, err
	}
	return q.ch.Consume(q.name, "", false, false, false, false, nil)
}
