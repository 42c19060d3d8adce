package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// Notifier delivers a confirmation to the guest.
type Notifier interface {
    SendBookingConfirmation(ctx context.Context, ev BookingConfirmedEvent) error
}

// Consumer listens to the booking.confirmed and order.expired queues.
// Each message is appended to <Dir>/booking.log as a single
// human-friendly line; confirmations are then handed to the Notifier.
type Consumer struct {
    URL      string
    Dir      string
    Notifier Notifier
    Log      *logrus.Entry
}

// Run connects to RabbitMQ, declares both queues (durable) and consumes
// until ctx is cancelled.  Lost connections are redialed with
// exponential backoff; a message that cannot be handled is rejected
// without requeue so the consumer keeps going.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.WithError(err).Warnf("booking-consumer: failed to dial broker; retrying in %s", backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.WithError(err).Warn("booking-consumer: consume loop ended; reconnecting")
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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.WithError(err).Warn("booking-consumer: set QoS failed")
    }

    for _, q := range []string{BookingConfirmedQueue, OrderExpiredQueue} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
    }

    confirmed, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume %s: %w", BookingConfirmedQueue, err)
    }
    expired, err := ch.Consume(OrderExpiredQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume %s: %w", OrderExpiredQueue, err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-confirmed:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            c.settle(d, c.handleMessage(ctx, d.Body))
        case d, ok := <-expired:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            c.settle(d, c.handleExpired(d.Body))
        }
    }
}

func (c *Consumer) settle(d amqp.Delivery, err error) {
    if err != nil {
        c.Log.WithError(err).WithField("queue", d.RoutingKey).Warn("booking-consumer: handle message failed")
        _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
        return
    }
    _ = d.Ack(false)
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
    var ev BookingConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := c.appendLine(FormatLogLine(ev)); err != nil {
        return err
    }

    if c.Notifier != nil {
        if err := c.Notifier.SendBookingConfirmation(ctx, ev); err != nil {
            // The booking is already confirmed and logged; mail is best effort.
            c.Log.WithError(err).WithField("order_id", ev.OrderID).Warn("booking-consumer: confirmation mail failed")
        }
    }
    return nil
}

func (c *Consumer) handleExpired(body []byte) error {
    var ev OrderExpiredEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.OrderID == "" {
        return errors.New("order expired event without order_id")
    }
    return c.appendLine(FormatExpiredLine(ev))
}

func (c *Consumer) appendLine(line string) error {
    dir := c.Dir
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLogLine renders ev as one booking.log line.
func FormatLogLine(ev BookingConfirmedEvent) string {
    return fmt.Sprintf("[%s] Booking confirmed | order_id=%s | reservation_id=%s | room=%q | guest=%q | phone=%s | check_in=%s | check_out=%s | amount=%d VND | txn=%s\n",
        ev.ConfirmedAt, ev.OrderID, ev.ReservationID, ev.RoomTitle, ev.CustomerName, ev.CustomerPhone,
        ev.CheckIn, ev.CheckOut, ev.Amount, ev.TransactionRef)
}

// FormatExpiredLine renders ev as one booking.log line.
func FormatExpiredLine(ev OrderExpiredEvent) string {
    return fmt.Sprintf("[%s] Order expired | order_id=%s | reservation_id=%s\n", ev.ExpiredAt, ev.OrderID, ev.ReservationID)
}
