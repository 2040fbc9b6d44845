package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const (
	OrderCreatedTopic = "order.created"
	OrderPaidTopic    = "order.paid"
)

type OrderCreatedEvent struct {
	OrderID       string    `json:"order_id"`
	CustomerEmail string    `json:"customer_email"`
	Item          string    `json:"item"`
	Quantity      int       `json:"quantity"`
	TotalAmount   int64     `json:"total_amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
	EventTime     time.Time `json:"event_time"`
}

// OrderPaidEvent carries everything the notification service needs to build
// the customer receipt and operator alert without a database round trip.
type OrderPaidEvent struct {
	OrderID             string    `json:"order_id"`
	ConfirmationNumber  string    `json:"confirmation_number"`
	CustomerName        string    `json:"customer_name"`
	CustomerEmail       string    `json:"customer_email"`
	Item                string    `json:"item"`
	Quantity            int       `json:"quantity"`
	Size                string    `json:"size"`
	Color               string    `json:"color,omitempty"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
	Amount              int64     `json:"amount"`
	Currency            string    `json:"currency"`
	EstimatedDelivery   time.Time `json:"estimated_delivery"`
	PaidAt              time.Time `json:"paid_at"`
	EventTime           time.Time `json:"event_time"`
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func NewKafkaProducer(brokers string, logger *logrus.Logger) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, err
	}

	return &KafkaProducer{
		producer: producer,
		logger:   logger,
	}, nil
}

func (p *KafkaProducer) PublishOrderCreated(event OrderCreatedEvent) error {
	event.EventTime = time.Now()
	return p.publish(OrderCreatedTopic, event.OrderID, event)
}

func (p *KafkaProducer) PublishOrderPaid(event OrderPaidEvent) error {
	event.EventTime = time.Now()
	return p.publish(OrderPaidTopic, event.OrderID, event)
}

func (p *KafkaProducer) publish(topic, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"order_id":  key,
	}).Info("Event published to Kafka")

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
