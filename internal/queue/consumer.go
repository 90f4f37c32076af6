package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/parksavvy/internal/ledger"
)

// Rewarder credits the upload reward.  *ledger.Service implements it.
type Rewarder interface {
    RewardUpload(ctx context.Context, userID uint64, ref string) (int, error)
}

// outcome tells the delivery loop how to settle a message.
type outcome int

const (
    ack     outcome = iota // processed, or already processed
    reject                 // malformed or unprocessable: drop
    requeue                // transient failure: try again
)

func (o outcome) String() string {
    switch o {
    case ack:
        return "ack"
    case reject:
        return "reject"
    default:
        return "requeue"
    }
}

const handleTimeout = 10 * time.Second

// StartUploadConsumer connects to RabbitMQ, declares the upload.completed
// queue (durable) and credits one reward per event.  It reconnects with
// exponential backoff and returns only when ctx is cancelled.
func StartUploadConsumer(ctx context.Context, url string, rw Rewarder, logger *logrus.Logger) error {
    log := logger.WithField("component", "upload-consumer")
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.WithError(err).Warnf("dial broker failed; retrying in %s", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, rw, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.WithError(err).Warn("consume loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, rw Rewarder, log *logrus.Entry) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(20, 0, false); err != nil {
        log.WithError(err).Warn("set QoS failed")
    }
    if _, err := ch.QueueDeclare(UploadCompletedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(UploadCompletedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    log.WithField("queue", UploadCompletedQueue).Info("consuming")

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            hctx, cancel := context.WithTimeout(ctx, handleTimeout)
            res := handleMessage(hctx, d.Body, rw, log)
            cancel()
            switch res {
            case ack:
                _ = d.Ack(false)
            case reject:
                _ = d.Nack(false, false)
            case requeue:
                _ = d.Nack(false, true)
            }
        }
    }
}

// handleMessage decodes one delivery and credits the reward.  Duplicate
// events are acknowledged without a second credit.
func handleMessage(ctx context.Context, body []byte, rw Rewarder, log *logrus.Entry) outcome {
    var ev UploadCompletedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        log.WithError(err).Warn("malformed upload event")
        return reject
    }
    fields := logrus.Fields{"event_id": ev.EventID, "user_id": ev.UserID, "upload_id": ev.UploadID}
    if err := ev.Validate(); err != nil {
        log.WithFields(fields).WithError(err).Warn("invalid upload event")
        return reject
    }

    points, err := rw.RewardUpload(ctx, ev.UserID, ev.EventID)
    switch {
    case err == nil:
        log.WithFields(fields).WithField("points", points).Info("upload rewarded")
        return ack
    case errors.Is(err, ledger.ErrAlreadyApplied):
        log.WithFields(fields).Info("upload already rewarded")
        return ack
    case errors.Is(err, ledger.ErrUserNotFound):
        log.WithFields(fields).Warn("upload event for unknown user")
        return reject
    default:
        log.WithFields(fields).WithError(err).Error("reward upload failed")
        return requeue
    }
}
