// Package mailer hands outbound email to the delivery service over AMQP.
package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, email *models.Email) error
}

// New dials the broker, or returns a log-only mailer when mail is disabled.
func New(lc fx.Lifecycle, cfg *config.Config) (Mailer, error) {
	if !cfg.Mail.Enabled {
		return NewLogMailer(cfg.Mail.From), nil
	}
	m, err := Dial(cfg.Mail)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(m.Close))
	return m, nil
}

type amqpMailer struct {
	conn       *amqp.Connection
	exchange   string
	routingKey string
	from       string
	log        *zap.SugaredLogger

	// one confirm-mode channel, publishes are serialized on it
	mu       sync.Mutex
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
}

func Dial(cfg config.MailConfig) (*amqpMailer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	m := &amqpMailer{
		conn:       conn,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		from:       cfg.From,
		log:        logger.Named("mailer"),
	}
	if err := m.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

func (m *amqpMailer) openChannel() error {
	ch, err := m.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(m.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}
	m.ch = ch
	m.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return nil
}

// Send publishes the email and waits for the broker to confirm it.
func (m *amqpMailer) Send(ctx context.Context, email *models.Email) error {
	msg := *email
	if msg.From == "" {
		msg.From = m.from
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ch == nil || m.ch.IsClosed() {
		if err := m.openChannel(); err != nil {
			return err
		}
	}

	id := uuid.NewString()
	err = m.ch.PublishWithContext(ctx, m.exchange, m.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish email: %w", err)
	}

	select {
	case confirm, ok := <-m.confirms:
		if !ok {
			m.ch = nil
			return fmt.Errorf("channel closed before confirm")
		}
		if !confirm.Ack {
			return fmt.Errorf("email %s was nacked by broker", id)
		}
	case <-ctx.Done():
		// the pending confirm would be read by the next publish, reset the channel
		m.ch.Close()
		m.ch = nil
		return ctx.Err()
	}

	m.log.Infow("email queued", "message_id", id, "to", msg.To, "exchange", m.exchange)
	return nil
}

func (m *amqpMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ch != nil {
		m.ch.Close()
	}
	return m.conn.Close()
}

// LogMailer records emails in the log instead of delivering them.
type LogMailer struct {
	from string
	log  *zap.SugaredLogger
}

func NewLogMailer(from string) *LogMailer {
	return &LogMailer{from: from, log: logger.Named("mailer")}
}

func (m *LogMailer) Send(_ context.Context, email *models.Email) error {
	from := email.From
	if from == "" {
		from = m.from
	}
	m.log.Infow("mail delivery disabled, email not sent",
		"from", from,
		"to", email.To,
		"subject", email.Subject)
	return nil
}
