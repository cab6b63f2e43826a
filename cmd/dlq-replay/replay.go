package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/service/outbox"
)

const headerReplayedFrom = "x-replayed-from"

// window: диапазон offset'ов [from, until) одной партиции, зафиксированный до чтения.
// Сообщения, пришедшие в DLQ во время replay, не читаются.
type window struct {
	partition int32
	from      int64
	until     int64
}

type summary struct {
	scanned  int
	replayed int
	skipped  int
}

func (s *summary) merge(other summary) {
	s.scanned += other.scanned
	s.replayed += other.replayed
	s.skipped += other.skipped
}

type replayer struct {
	src    dlqSource
	out    sender
	cfg    config
	logger *log.Entry
}

func newReplayer(src dlqSource, out sender, cfg config) *replayer {
	return &replayer{
		src: src,
		out: out,
		cfg: cfg,
		logger: log.WithFields(log.Fields{
			"component":    "dlq-replay",
			"source_topic": cfg.sourceTopic,
			"execute":      cfg.execute,
		}),
	}
}

func (r *replayer) run(ctx context.Context) (summary, error) {
	var total summary
	if r.src == nil {
		return total, errors.New("kafka source is required")
	}
	if r.cfg.execute && r.out == nil {
		return total, errors.New("producer is required in execute mode")
	}

	windows, err := r.plan()
	if err != nil {
		return total, err
	}

	for _, w := range windows {
		budget := r.cfg.limit - total.scanned
		if budget <= 0 {
			break
		}
		got, err := r.scan(ctx, w, budget)
		total.merge(got)
		if err != nil {
			return total, err
		}
	}

	r.logger.WithFields(log.Fields{
		"scanned":  total.scanned,
		"replayed": total.replayed,
		"skipped":  total.skipped,
	}).Info("dlq replay finished")
	return total, nil
}

// plan фиксирует непустые окна партиций в порядке номеров.
func (r *replayer) plan() ([]window, error) {
	topic := r.cfg.sourceTopic
	partitions, err := r.src.Partitions(topic)
	if err != nil {
		return nil, fmt.Errorf("list partitions of %s: %w", topic, err)
	}
	slices.Sort(partitions)

	windows := make([]window, 0, len(partitions))
	for _, p := range partitions {
		oldest, err := r.src.GetOffset(topic, p, sarama.OffsetOldest)
		if err != nil {
			return nil, fmt.Errorf("oldest offset of %s/%d: %w", topic, p, err)
		}
		newest, err := r.src.GetOffset(topic, p, sarama.OffsetNewest)
		if err != nil {
			return nil, fmt.Errorf("newest offset of %s/%d: %w", topic, p, err)
		}
		if newest <= oldest {
			continue
		}

		w := window{partition: p, from: oldest, until: newest}
		if r.cfg.fromNewest {
			w.from = max(newest-int64(r.cfg.limit), oldest)
		}
		windows = append(windows, w)
	}

	if len(windows) == 0 {
		r.logger.Warn("dlq is empty")
	}
	return windows, nil
}

// scan читает окно до его конца или до исчерпания budget.
// Если партиция молчит дольше idleTimeout, чтение тоже завершается.
func (r *replayer) scan(ctx context.Context, w window, budget int) (summary, error) {
	var got summary

	stream, err := r.src.ConsumePartition(r.cfg.sourceTopic, w.partition, w.from)
	if err != nil {
		return got, fmt.Errorf("consume partition %d: %w", w.partition, err)
	}
	defer func() { _ = stream.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for got.scanned < budget {
		select {
		case <-ctx.Done():
			return got, ctx.Err()
		case <-idle.C:
			return got, nil
		case cerr := <-stream.Errors():
			if cerr != nil {
				return got, fmt.Errorf("partition %d: %w", w.partition, cerr)
			}
		case msg, ok := <-stream.Messages():
			if !ok || msg == nil || msg.Offset >= w.until {
				return got, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			got.scanned++
			replayed, err := r.handle(msg)
			if err != nil {
				return got, err
			}
			if replayed {
				got.replayed++
			} else {
				got.skipped++
			}
			if msg.Offset+1 >= w.until {
				return got, nil
			}
		}
	}
	return got, nil
}

// handle возвращает false, если сообщение пропущено фильтром или не разобрано.
func (r *replayer) handle(msg *sarama.ConsumerMessage) (bool, error) {
	entry := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	out, eventType, err := decodeDeadLetter(msg, r.cfg.targetTopic)
	if err != nil {
		entry.WithError(err).Warn("skip unreadable dlq message")
		return false, nil
	}
	if r.cfg.eventType != "" && eventType != r.cfg.eventType {
		return false, nil
	}

	entry = entry.WithFields(log.Fields{"target_topic": out.Topic, "key": out.Key, "event_type": eventType})
	if !r.cfg.execute {
		entry.Info("dlq replay candidate")
		return true, nil
	}

	out.Headers = map[string]string{headerReplayedFrom: r.cfg.sourceTopic}
	if _, err := r.out.Send(out); err != nil {
		return false, fmt.Errorf("replay %s/%d: %w", r.cfg.sourceTopic, msg.Offset, err)
	}
	entry.Debug("dlq message replayed")
	return true, nil
}

// decodeDeadLetter восстанавливает исходное outbox-событие из DLQ-сообщения.
// Топик берётся из заголовка x-original-topic, иначе используется defaultTopic.
func decodeDeadLetter(msg *sarama.ConsumerMessage, defaultTopic string) (kafka.Message, string, error) {
	var envelope kafka.OutboxEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return kafka.Message{}, "", fmt.Errorf("decode dlq envelope: %w", err)
	}
	if len(envelope.Payload) == 0 {
		return kafka.Message{}, "", errors.New("dlq envelope has no payload")
	}

	var letter outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return kafka.Message{}, "", fmt.Errorf("decode dead letter: %w", err)
	}
	if len(letter.Payload) == 0 {
		return kafka.Message{}, "", errors.New("dead letter has no original event")
	}

	// Replay публикуется в том же формате, что и OutboxTopicPublisher.
	replay := kafka.OutboxEnvelope{
		ID:            firstNonEmpty(letter.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(letter.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(letter.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(letter.EventType, envelope.EventType),
		Payload:       letter.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	topic := defaultTopic
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == kafka.HeaderOriginalTopic && len(h.Value) > 0 {
			topic = string(h.Value)
		}
	}

	return kafka.Message{Topic: topic, Key: replay.PartitionKey(), Value: replay}, replay.EventType, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
