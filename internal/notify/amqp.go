package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"ledger_system/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RoutingKey is the topic every owner notification is published under
const RoutingKey = "ledger.notification.owner"

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPNotifier publishes notifications to a durable topic exchange for the mailer to consume
type AMQPNotifier struct {
	conn     *amqp091.Connection
	openChan func() (channel, error)
	exchange string
	log      logrus.FieldLogger

	mu sync.Mutex
	ch channel
}

// NewAMQPNotifier builds a publisher for the broker at rawURL. It dials right away, but an unreachable
// broker is not fatal: every Notify dials again and returns the error until the broker is back, so
// the task worker keeps the notification pending. Only a malformed URL fails here.
func NewAMQPNotifier(rawURL, exchange string, log logrus.FieldLogger) (*AMQPNotifier, error) {
	cleanURL, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	n := newAMQPNotifier(nil, exchange, log)
	n.openChan = func() (channel, error) { return n.dialChannel(cleanURL) }
	if err := n.reopen(); err != nil {
		n.log.WithFields(logrus.Fields{
			"exchange": exchange,
			"error":    err.Error(),
		}).Warn("RabbitMQ unavailable, dialing again on next publish")
	}
	return n, nil
}

// dialChannel opens a channel, dialing a new connection when there is none. Callers hold mu or own
// n exclusively.
func (n *AMQPNotifier) dialChannel(url string) (channel, error) {
	if n.conn == nil || n.conn.IsClosed() {
		// Bounded dial so a publish does not hang on an unreachable broker
		conn, err := amqp091.DialConfig(url, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
		if err != nil {
			return nil, err
		}
		n.conn = conn
	}
	ch, err := n.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func newAMQPNotifier(open func() (channel, error), exchange string, log logrus.FieldLogger) *AMQPNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AMQPNotifier{openChan: open, exchange: exchange, log: log}
}

// reopen replaces the channel and re-declares the exchange. Callers hold mu or own n exclusively.
func (n *AMQPNotifier) reopen() error {
	ch, err := n.openChan()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(
		n.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		return err
	}
	if n.ch != nil {
		_ = n.ch.Close()
	}
	n.ch = ch
	return nil
}

// Notify publishes n as persistent JSON. A failed publish reopens the channel and tries once more;
// anything beyond that is left to the caller's retry policy.
func (n *AMQPNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pub := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch == nil {
		if err := n.reopen(); err != nil {
			return err
		}
	}
	err = n.ch.PublishWithContext(ctx, n.exchange, RoutingKey, false, false, pub)
	if err == nil {
		return nil
	}
	n.log.WithFields(logrus.Fields{
		"exchange":    n.exchange,
		"routing_key": RoutingKey,
		"error":       err.Error(),
	}).Warn("Publish failed, reopening channel")
	if rerr := n.reopen(); rerr != nil {
		return errors.Join(err, rerr)
	}
	return n.ch.PublishWithContext(ctx, n.exchange, RoutingKey, false, false, pub)
}

// Close closes the channel and the connection
func (n *AMQPNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	// Drop stray characters before the scheme
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
