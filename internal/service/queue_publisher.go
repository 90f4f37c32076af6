// Package queue_publisher publishes domain events to RabbitMQ.  Errors are
// logged and returned so callers can ignore failures without interrupting
// the main request flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/parksavvy/internal/ledger"
    q "github.com/iliyamo/parksavvy/internal/queue"
)

// Publisher opens one short-lived connection per message.  Event volume is
// low (one per ledger change) so no connection is kept around.
type Publisher struct {
    URL string
    Log *logrus.Logger
}

// New returns a Publisher for url.
func New(url string, log *logrus.Logger) *Publisher {
    return &Publisher{URL: url, Log: log}
}

// LedgerEntryApplied implements ledger.Notifier.
func (p *Publisher) LedgerEntryApplied(ctx context.Context, ev ledger.Event) error {
    return p.PublishLedgerEntry(ctx, ev)
}

// PublishLedgerEntry publishes ev to the points.ledger queue.
func (p *Publisher) PublishLedgerEntry(ctx context.Context, ev ledger.Event) error {
    return p.publish(ctx, q.PointsLedgerQueue, ev.EventID, ev)
}

// PublishUploadCompleted publishes ev to the upload.completed queue.
func (p *Publisher) PublishUploadCompleted(ctx context.Context, ev q.UploadCompletedEvent) error {
    if err := ev.Validate(); err != nil {
        return err
    }
    return p.publish(ctx, q.UploadCompletedQueue, ev.EventID, ev)
}

func (p *Publisher) publish(ctx context.Context, queue, messageID string, v any) error {
    log := p.logger().WithFields(logrus.Fields{"queue": queue, "event_id": messageID})

    body, err := json.Marshal(v)
    if err != nil {
        log.WithError(err).Error("marshal event failed")
        return fmt.Errorf("marshal event: %w", err)
    }

    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.WithError(err).Warn("rabbitmq dial failed")
        return fmt.Errorf("dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.WithError(err).Warn("rabbitmq channel open failed")
        return fmt.Errorf("channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // Idempotent; durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        log.WithError(err).Warn("rabbitmq queue declare failed")
        return fmt.Errorf("queue declare: %w", err)
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    messageID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        log.WithError(err).Warn("rabbitmq publish failed")
        return fmt.Errorf("publish: %w", err)
    }
    log.Debug("event published")
    return nil
}

func (p *Publisher) logger() *logrus.Logger {
    if p.Log == nil {
        return logrus.StandardLogger()
    }
    return p.Log
}
