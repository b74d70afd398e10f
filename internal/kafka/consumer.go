package kafka

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// StartConsumer subscribes handler to the realtime feed for the lifetime of
// the app. Without Kafka the handler is attached to the local feed.
func StartConsumer(
	lc fx.Lifecycle,
	cfg *config.Config,
	feed *LocalFeed,
	handler EventHandler,
) error {
	if !cfg.Kafka.Enabled {
		logger.Named("kafka").Warn("Kafka is disabled, using the in-process feed")
		feed.Subscribe(handler)
		return nil
	}

	c, err := NewConsumer(cfg.Kafka, handler)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: c.Start,
		OnStop:  c.Stop,
	})
	return nil
}

type kafkaConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler *groupHandler
	log     *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer joins a consumer group unique to this instance: every process
// hosts its own consoles and needs every event.
func NewConsumer(cfg config.KafkaConfig, handler EventHandler) (Consumer, error) {
	metrics, err := util.GetHistogramVec("kafka_messages_consumed", "status", "topic", "group")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}

	groupID := fmt.Sprintf("%s-%s", cfg.GroupID, uuid.NewString()[:8])
	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	log := logger.Named("kafka.consumer")
	return &kafkaConsumer{
		group: group,
		topic: cfg.Topic,
		handler: &groupHandler{
			handler:        handler,
			metrics:        metrics,
			groupID:        groupID,
			consumeTimeout: 30 * time.Second,
			log:            log,
		},
		log: log,
	}, nil
}

func (c *kafkaConsumer) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.log.Infof("Starting Kafka consumer for topic: %s", c.topic)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for ctx.Err() == nil {
			err := c.group.Consume(ctx, []string{c.topic}, c.handler)
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			if err != nil {
				c.log.Errorw("Error consuming", "error", err)
				time.Sleep(time.Second)
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.log.Errorw("Consumer group error", "error", err)
		}
	}()
	return nil
}

func (c *kafkaConsumer) Stop(_ context.Context) error {
	c.log.Info("Stopping Kafka consumer")
	if c.cancel != nil {
		c.cancel()
	}
	err := c.group.Close()
	c.wg.Wait()
	return err
}

type groupHandler struct {
	handler        EventHandler
	metrics        *prometheus.HistogramVec
	groupID        string
	consumeTimeout time.Duration
	log            *zap.SugaredLogger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.processMessage(sess.Context(), msg)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

func (h *groupHandler) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	lagMs := time.Since(msg.Timestamp).Milliseconds()

	duration, err := h.handle(ctx, msg)

	code := getCode(err)
	content := "success"
	if err != nil {
		content = err.Error()
	}

	h.log.Logw(getLogLevel(code), content,
		"code", code.String(),
		"duration_ms", duration.Milliseconds(),
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"lag_ms", lagMs,
		"key", string(msg.Key),
	)

	h.metrics.
		WithLabelValues(code.String(), msg.Topic, h.groupID).
		Observe(duration.Seconds())
}

func (h *groupHandler) handle(msgCtx context.Context, msg *sarama.ConsumerMessage) (duration time.Duration, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			length := runtime.Stack(stack, false)
			err = fmt.Errorf("PANIC RECOVER: %+v / %s", r, string(stack[:length]))
		}
		duration = time.Since(start)
	}()

	inserted, err := decodeInserted(msg.Value)
	if err != nil {
		return 0, err
	}
	if inserted == nil {
		h.log.Debugw("Ignoring event", "key", string(msg.Key))
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(msgCtx, h.consumeTimeout)
	defer cancel()

	return 0, h.handler.HandleMessageInserted(ctx, inserted)
}

func getCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	return status.Code(err)
}

func getLogLevel(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK:
		return zapcore.InfoLevel
	case codes.Canceled,
		codes.InvalidArgument,
		codes.NotFound,
		codes.AlreadyExists,
		codes.PermissionDenied,
		codes.Unauthenticated,
		codes.ResourceExhausted,
		codes.FailedPrecondition,
		codes.Aborted,
		codes.Unimplemented,
		codes.OutOfRange:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
