// Command dlq-replay читает pos.dlq и возвращает события продаж в исходный топик.
// По умолчанию работает в режиме dry-run и только печатает кандидатов.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	eventType   string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("dlq replay failed")
	}
}

func parseConfig(fs *flag.FlagSet, args []string, getenv func(string) string) (config, error) {
	var (
		cfg     config
		brokers string
	)

	fs.StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (default: $POS_KAFKA_BROKERS)")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to scan")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicSaleEvents, "topic for messages without x-original-topic")
	fs.StringVar(&cfg.eventType, "event-type", "", "replay only this event type")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max messages to scan across partitions")
	fs.BoolVar(&cfg.execute, "execute", false, "publish messages; without it only candidates are logged")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the newest -limit messages of each partition")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this much silence")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokers) == "" {
		brokers = getenv("POS_KAFKA_BROKERS")
	}
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			cfg.brokers = append(cfg.brokers, broker)
		}
	}

	var errs []error
	if len(cfg.brokers) == 0 {
		errs = append(errs, errors.New("kafka brokers are required (-brokers or POS_KAFKA_BROKERS)"))
	}
	if strings.TrimSpace(cfg.sourceTopic) == "" {
		errs = append(errs, errors.New("source-topic is required"))
	}
	if strings.TrimSpace(cfg.targetTopic) == "" {
		errs = append(errs, errors.New("target-topic is required"))
	}
	if cfg.limit <= 0 {
		errs = append(errs, errors.New("limit must be > 0"))
	}
	if cfg.idleTimeout <= 0 {
		errs = append(errs, errors.New("idle-timeout must be > 0"))
	}
	if err := errors.Join(errs...); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config) error {
	src, out, err := openKafka(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if out != nil {
			_ = out.Close()
		}
		_ = src.Close()
	}()

	_, err = newReplayer(src, out, cfg).run(ctx)
	return err
}
