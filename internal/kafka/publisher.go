package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// EventHandler receives every message inserted into the workspace.
type EventHandler interface {
	HandleMessageInserted(ctx context.Context, msg *models.Message) error
}

// Publisher puts inserted messages on the realtime feed.
type Publisher interface {
	PublishMessageInserted(ctx context.Context, msg *models.Message) error
}

// NewPublisher returns a Kafka producer, or the in-process feed when Kafka is
// disabled.
func NewPublisher(lc fx.Lifecycle, cfg *config.Config, feed *LocalFeed) (Publisher, error) {
	if !cfg.Kafka.Enabled {
		return feed, nil
	}
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, newSaramaConfig(cfg.Kafka))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	p := newKafkaPublisher(producer, cfg.Kafka.Topic)
	lc.Append(fx.StopHook(p.Close))
	return p, nil
}

func newSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	return sc
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.SugaredLogger
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string) *kafkaPublisher {
	return &kafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      logger.Named("kafka.publisher"),
	}
}

func (p *kafkaPublisher) PublishMessageInserted(ctx context.Context, msg *models.Message) error {
	body, err := encodeInserted(msg)
	if err != nil {
		return err
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.ChatID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(models.EventMessageInserted)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish message inserted: %w", err)
	}
	p.log.Debugw("published message inserted",
		"chat_id", msg.ChatID,
		"message_id", msg.ID,
		"partition", partition,
		"offset", offset)
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// LocalFeed delivers published messages straight to the subscribed handler.
// It stands in for the broker in single-process deployments.
type LocalFeed struct {
	mu      sync.RWMutex
	handler EventHandler
	log     *zap.SugaredLogger
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{log: logger.Named("kafka.local")}
}

func (f *LocalFeed) Subscribe(h EventHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *LocalFeed) PublishMessageInserted(ctx context.Context, msg *models.Message) error {
	f.mu.RLock()
	h := f.handler
	f.mu.RUnlock()
	if h == nil {
		f.log.Debugw("no subscriber, dropping event", "message_id", msg.ID)
		return nil
	}
	// The feed carries a decoded copy, as a broker would.
	body, err := encodeInserted(msg)
	if err != nil {
		return err
	}
	copied, err := decodeInserted(body)
	if err != nil {
		return err
	}
	return h.HandleMessageInserted(ctx, copied)
}
