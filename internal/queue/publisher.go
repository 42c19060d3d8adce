package queue

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// Publisher sends domain events to RabbitMQ.  It keeps one connection and
// redials on the next publish after the broker drops it.  Errors are
// logged and returned so callers can treat publishing as best effort.
type Publisher struct {
    url string
    log *logrus.Entry

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// NewPublisher dials url once to fail fast on a bad configuration.
func NewPublisher(url string, log *logrus.Entry) (*Publisher, error) {
    p := &Publisher{url: url, log: log}
    p.mu.Lock()
    defer p.mu.Unlock()
    if err := p.connectLocked(); err != nil {
        return nil, err
    }
    return p, nil
}

// connectLocked opens a connection and channel and declares the queues.
// Caller holds p.mu.
func (p *Publisher) connectLocked() error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return err
    }
    for _, q := range []string{BookingConfirmedQueue, OrderExpiredQueue} {
        // Durable so messages survive broker restarts.
        if _, err := ch.QueueDeclare(
            q,     // name
            true,  // durable
            false, // autoDelete
            false, // exclusive
            false, // noWait
            nil,   // args
        ); err != nil {
            _ = ch.Close()
            _ = conn.Close()
            return err
        }
    }
    p.conn, p.ch = conn, ch
    return nil
}

// PublishBookingConfirmed publishes ev to the booking.confirmed queue.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
    return p.publish(ctx, BookingConfirmedQueue, ev)
}

// PublishOrderExpired publishes ev to the order.expired queue.
func (p *Publisher) PublishOrderExpired(ctx context.Context, ev OrderExpiredEvent) error {
    return p.publish(ctx, OrderExpiredQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        p.log.WithError(err).Warn("rabbitmq: marshal event failed")
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch == nil || p.ch.IsClosed() || p.conn == nil || p.conn.IsClosed() {
        p.closeLocked()
        if err := p.connectLocked(); err != nil {
            p.log.WithError(err).WithField("queue", queue).Warn("rabbitmq: dial failed")
            return err
        }
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := p.ch.PublishWithContext(ctx,
        "",    // default exchange
        queue, // routing key = queue name
        false, // mandatory
        false, // immediate
        pub,
    ); err != nil {
        p.log.WithError(err).WithField("queue", queue).Warn("rabbitmq: publish failed")
        p.closeLocked()
        return err
    }
    return nil
}

func (p *Publisher) closeLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closeLocked()
    return nil
}

// NopPublisher drops every event.  It stands in when no broker is reachable.
type NopPublisher struct{ Log *logrus.Entry }

func (n NopPublisher) PublishBookingConfirmed(_ context.Context, ev BookingConfirmedEvent) error {
    if n.Log != nil {
        n.Log.WithField("order_id", ev.OrderID).Debug("broker disabled, booking.confirmed dropped")
    }
    return nil
}

func (n NopPublisher) PublishOrderExpired(_ context.Context, ev OrderExpiredEvent) error {
    if n.Log != nil {
        n.Log.WithField("order_id", ev.OrderID).Debug("broker disabled, order.expired dropped")
    }
    return nil
}
