package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/httpapi"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/sales"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

const (
	shutdownTimeout        = 5 * time.Second
	grpcHealthSyncInterval = 5 * time.Second
)

// Run поднимает хранилище, REST API, gRPC health, метрики и фоновые воркеры.
// Блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRuntimeDependencies(deps, logger)

	shutdownTracing, err := initTracing(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to init tracing, continuing without export")
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.WithError(err).Warn("tracer shutdown with error")
		}
	}()

	catalogSvc := catalog.NewService(deps.products, logger.WithField("layer", "catalog"))
	if cfg.SeedSampleData {
		seeded, err := catalogSvc.SeedIfEmpty(ctx, catalog.SampleProducts())
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		if seeded > 0 {
			logger.WithField("products", seeded).Info("каталог заполнен демо-товарами")
		}
	}

	engine := sales.NewEngine(deps.sales, logger.WithField("layer", "sales"),
		sales.WithMetrics(metrics.NewSalesMetrics()))

	idempotencyMetrics := metrics.NewIdempotencyMetrics()
	guard := idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL,
		logger.WithField("layer", "idempotency"), idempotencyMetrics)

	// Kafka опциональна: без неё события остаются в outbox.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	outboxCancel, outboxDone := startOutboxWorker(ctx, cfg, deps.outboxRepo, kafkaProducer, logger)
	defer shutdownWorker(outboxCancel, outboxDone, logger)

	cleanupWorker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		idempotency.WithMetrics(idempotencyMetrics),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	cleanupCancel, cleanupDone := runWorker(ctx, cleanupWorker.Run)
	defer shutdownWorker(cleanupCancel, cleanupDone, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion(),
		healthcheck.WithCheckTimeout(storagePingTimeout+time.Second))
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("outbox", outboxBacklogChecker{repo: deps.outboxRepo, limit: cfg.OutboxMaxPending})
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	router := httpapi.NewRouter(catalogSvc, engine, httpapi.Options{
		Logger:         logger.WithField("layer", "http"),
		Metrics:        metrics.NewHTTPMetrics(),
		AllowedOrigins: cfg.AllowedOrigins(),
		Idempotency:    guard,
		ServiceName:    cfg.ServiceName,
	})
	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	apiSrv := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	grpcServer, healthServer := newGRPCServer(logger)
	go syncGRPCHealth(ctx, healthHandler, healthServer, grpcHealthSyncInterval)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiLis.Close()
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("REST API слушает %s", apiLis.Addr())
		errCh <- apiSrv.Serve(apiLis)
	}()
	go func() {
		logger.Infof("gRPC health сервер слушает %s", grpcLis.Addr())
		errCh <- grpcServer.Serve(grpcLis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		shutdownHTTP(apiSrv, logger)
		stopGRPC(grpcServer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(apiSrv, logger)
		stopGRPC(grpcServer, logger)
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// newGRPCServer собирает gRPC сервер с health-сервисом, reflection и prometheus-интерсепторами.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// syncGRPCHealth переносит результат HTTP health-проверок в gRPC health-сервис:
// unhealthy становится NOT_SERVING, healthy и degraded остаются SERVING.
func syncGRPCHealth(ctx context.Context, checks *healthcheck.Handler, srv *health.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := healthpb.HealthCheckResponse_SERVING
			if checks.Evaluate(ctx).Status == healthcheck.StatusUnhealthy {
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			if ctx.Err() != nil {
				return
			}
			srv.SetServingStatus("", status)
		}
	}
}

func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startMetricsServer запускает HTTP-сервер с /metrics и health-пробами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
