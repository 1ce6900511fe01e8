package queue

import (
    "context"
    "encoding/json"
    "errors"
    "sync"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// EventsQueue is the durable queue booking events are routed to.
const EventsQueue = "booking.events"

// Publisher sends booking events to RabbitMQ.  The connection is opened
// lazily and re-dialled after a failure; publishing never blocks the
// caller for longer than the context allows.
type Publisher struct {
    url string
    log *log.Logger

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher {
    return &Publisher{url: url, log: log.New("publisher")}
}

// Publish marshals ev and sends it as a persistent message.  Errors are
// logged and returned so the caller can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        p.log.Errorf("marshal event failed: %v", err)
        return err
    }
    ch, err := p.channel()
    if err != nil {
        p.log.Warnf("channel unavailable: %v", err)
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Type:         string(ev.Type),
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", EventsQueue, false, false, pub); err != nil {
        p.log.Warnf("publish %s for booking %d failed: %v", ev.Type, ev.BookingID, err)
        p.reset()
        return err
    }
    return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    var err error
    if p.ch != nil {
        err = p.ch.Close()
    }
    if p.conn != nil {
        err = errors.Join(err, p.conn.Close())
    }
    p.ch, p.conn = nil, nil
    return err
}

func (p *Publisher) channel() (*amqp.Channel, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    if p.conn == nil || p.conn.IsClosed() {
        conn, err := amqp.Dial(p.url)
        if err != nil {
            return nil, err
        }
        p.conn = conn
    }
    ch, err := p.conn.Channel()
    if err != nil {
        return nil, err
    }
    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        return nil, err
    }
    p.ch = ch
    return ch, nil
}

func (p *Publisher) reset() {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
}

// NopPublisher drops events.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }
