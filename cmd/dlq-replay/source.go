package main

import (
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

// partitionStream: поток одной партиции, как его отдаёт sarama.PartitionConsumer.
type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

// dlqSource объединяет метаданные топика и чтение партиций.
type dlqSource interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partition int32, at int64) (int64, error)
	ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error)
	Close() error
}

type sender interface {
	Send(msg kafka.Message) (kafka.Delivery, error)
	Close() error
}

type saramaSource struct {
	client   sarama.Client
	consumer sarama.Consumer
}

func (s *saramaSource) Partitions(topic string) ([]int32, error) {
	return s.client.Partitions(topic)
}

func (s *saramaSource) GetOffset(topic string, partition int32, at int64) (int64, error) {
	return s.client.GetOffset(topic, partition, at)
}

func (s *saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s *saramaSource) Close() error {
	consumerErr := s.consumer.Close()
	if err := s.client.Close(); err != nil {
		return err
	}
	return consumerErr
}

// openKafka подключается к брокерам. Producer создаётся только с -execute.
var openKafka = func(cfg config) (dlqSource, sender, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, saramaCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	src := &saramaSource{client: client, consumer: consumer}

	if !cfg.execute {
		return src, nil, nil
	}
	producer, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return src, producer, nil
}
