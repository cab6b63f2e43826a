package kafka

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Message: одно JSON-сообщение для Kafka. Value сериализуется через encoding/json.
type Message struct {
	Topic   string
	Key     string
	Value   any
	Headers map[string]string
}

// Delivery: координаты записанного сообщения.
type Delivery struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Producer: синхронный producer событий POS: Send возвращается после подтверждения брокера.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducerConfig возвращает настройки idempotent sync producer.
// Их же использует cmd/dlq-replay, чтобы replay не дублировал события.
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	// Idempotent producer в sarama требует одного запроса в полёте.
	config.Net.MaxOpenRequests = 1
	return config
}

func NewProducer(brokers []string) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(producer), nil
}

func newProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}
}

// Send сериализует msg.Value и ждёт подтверждения записи.
// Заголовки добавляются в порядке имён.
func (p *Producer) Send(msg Message) (Delivery, error) {
	value, err := json.Marshal(msg.Value)
	if err != nil {
		return Delivery{}, fmt.Errorf("marshal %s message: %w", msg.Topic, err)
	}

	out := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Key:       sarama.StringEncoder(msg.Key),
		Value:     sarama.ByteEncoder(value),
		Headers:   recordHeaders(msg.Headers),
		Timestamp: time.Now(),
	}

	entry := p.logger.WithFields(log.Fields{"topic": msg.Topic, "key": msg.Key})
	partition, offset, err := p.producer.SendMessage(out)
	if err != nil {
		entry.WithError(err).Error("kafka rejected message")
		return Delivery{}, fmt.Errorf("send to %s: %w", msg.Topic, err)
	}

	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("message sent to kafka")
	return Delivery{Topic: msg.Topic, Partition: partition, Offset: offset}, nil
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)

	records := make([]sarama.RecordHeader, 0, len(names))
	for _, name := range names {
		records = append(records, sarama.RecordHeader{Key: []byte(name), Value: []byte(headers[name])})
	}
	return records
}
