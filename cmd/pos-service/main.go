package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vladislavdragonenkov/pos/internal/app"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

// setupLogger настраивает формат, уровень и (опционально) файл с ротацией.
// Возвращает функцию закрытия файла; без POS_LOG_FILE она ничего не делает.
func setupLogger(cfg app.Config) (func() error, error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return func() error { return nil }, err
	}
	log.SetLevel(level)

	if cfg.LogFile == "" {
		log.SetOutput(os.Stdout)
		return func() error { return nil }, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator.Close, nil
}

func main() {
	cfg, warnings := readConfigFromEnv(os.LookupEnv)

	closeLog, err := setupLogger(cfg)
	if err != nil {
		log.WithError(err).WithField("level", cfg.LogLevel).Warn("неизвестный уровень логирования, используем info")
	}
	defer func() { _ = closeLog() }()

	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields(version.Get().Fields())).Info("сборка")
	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем POS service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("POS service остановлен")
}
