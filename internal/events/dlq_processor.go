package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// DLQProcessor replays dead-lettered notifications back onto the order.paid
// topic once the mail provider has recovered.
type DLQProcessor struct {
	consumer    sarama.ConsumerGroup
	producer    sarama.SyncProducer
	logger      *logrus.Logger
	replayTopic string
	replayDelay time.Duration
}

func NewDLQProcessor(brokers string, logger *logrus.Logger) (*DLQProcessor, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	consumerConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumerConfig.Version = sarama.V2_6_0_0

	consumer, err := sarama.NewConsumerGroup([]string{brokers}, "notification-dlq-processor", consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer([]string{brokers}, producerConfig)
	if err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &DLQProcessor{
		consumer:    consumer,
		producer:    producer,
		logger:      logger,
		replayTopic: OrderPaidTopic,
		replayDelay: 30 * time.Second,
	}, nil
}

func (p *DLQProcessor) ProcessDLQ(ctx context.Context) error {
	handler := &dlqConsumerHandler{
		processor: p,
		logger:    p.logger,
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("DLQ processor context cancelled")
			return nil
		default:
			if err := p.consumer.Consume(ctx, []string{NotificationDLQTopic}, handler); err != nil {
				p.logger.WithError(err).Error("Error consuming from DLQ")
				return err
			}
		}
	}
}

func (p *DLQProcessor) ReplayMessage(message *sarama.ConsumerMessage) error {
	var metadata MessageMetadata
	for _, header := range message.Headers {
		if string(header.Key) == "metadata" {
			if err := json.Unmarshal(header.Value, &metadata); err != nil {
				p.logger.WithError(err).Error("Failed to unmarshal metadata")
			}
			break
		}
	}

	if metadata.RetryCount >= MaxRetries*2 {
		p.logger.WithFields(logrus.Fields{
			"order_key":   string(message.Key),
			"retry_count": metadata.RetryCount,
		}).Error("Notification exceeded maximum replay attempts")
		return fmt.Errorf("exceeded maximum replay attempts")
	}

	replayMessage := &sarama.ProducerMessage{
		Topic: p.replayTopic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("retry_count"),
				Value: []byte(fmt.Sprintf("%d", metadata.RetryCount)),
			},
			{
				Key:   []byte("replayed_from_dlq"),
				Value: []byte("true"),
			},
			{
				Key:   []byte("replay_time"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(replayMessage)
	if err != nil {
		return fmt.Errorf("failed to replay message: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"replay_topic":     p.replayTopic,
		"replay_partition": partition,
		"replay_offset":    offset,
		"order_key":        string(message.Key),
	}).Info("Notification replayed from DLQ")

	return nil
}

func (p *DLQProcessor) Close() error {
	if err := p.producer.Close(); err != nil {
		p.logger.WithError(err).Error("Failed to close producer")
	}
	return p.consumer.Close()
}

type dlqConsumerHandler struct {
	processor *DLQProcessor
	logger    *logrus.Logger
}

func (h *dlqConsumerHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("DLQ consumer session setup")
	return nil
}

func (h *dlqConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("DLQ consumer session cleanup")
	return nil
}

func (h *dlqConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			var metadata MessageMetadata
			for _, header := range message.Headers {
				if string(header.Key) == "metadata" {
					json.Unmarshal(header.Value, &metadata)
					break
				}
			}

			h.logger.WithFields(logrus.Fields{
				"topic":          message.Topic,
				"offset":         message.Offset,
				"key":            string(message.Key),
				"original_topic": metadata.OriginalTopic,
				"retry_count":    metadata.RetryCount,
				"error_message":  metadata.ErrorMessage,
			}).Warn("Processing dead-lettered notification")

			// Give the mail provider room to recover before replaying.
			time.Sleep(h.processor.replayDelay)

			if err := h.processor.ReplayMessage(message); err != nil {
				h.logger.WithError(err).Error("Failed to replay DLQ message")
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
