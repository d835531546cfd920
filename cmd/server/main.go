package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/salespoint-inventory/internal/adapter/handler"
	"github.com/rl1809/salespoint-inventory/internal/adapter/messaging"
	"github.com/rl1809/salespoint-inventory/internal/adapter/storage"
	"github.com/rl1809/salespoint-inventory/internal/config"
	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/core/service"
	applogger "github.com/rl1809/salespoint-inventory/internal/platform/logger"
	"github.com/rl1809/salespoint-inventory/internal/platform/metrics"
	"github.com/rl1809/salespoint-inventory/internal/platform/tracing"
	"github.com/rl1809/salespoint-inventory/internal/port"
)

type repositories struct {
	inventory port.InventoryRepository
	orders    port.OrderRepository
	products  port.ProductRepository
	tx        port.Transactor
	cache     port.IdempotencyStore
	close     func()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := applogger.New(cfg.LogLevel, config.ServiceName)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	shutdownTracing, err := tracing.Setup(ctx, cfg.OtelEndpoint, config.ServiceName, config.ServiceVersion)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	inventoryMetrics := metrics.NewInventoryMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	// Initialize services
	exempt := make([]domain.ProductIdentifier, 0, len(cfg.ExemptProducts))
	for _, id := range cfg.ExemptProducts {
		exempt = append(exempt, domain.ProductIdentifier(id))
	}
	reconciler := service.NewReconciler(repos.inventory, logger, inventoryMetrics, service.ExcludeProducts(exempt...))
	catalogService := service.NewCatalogService(repos.products, logger)
	inventoryService := service.NewInventoryService(repos.inventory, repos.products, repos.tx, logger, inventoryMetrics)
	orderService := service.NewOrderService(repos.orders, repos.products, repos.tx, reconciler, logger)

	// Kafka: lifecycle events in, completion reports out
	var (
		consumerWG    sync.WaitGroup
		consumer      *messaging.LifecycleConsumer
		reportPublish *messaging.ReportPublisher
	)
	kafkaClient := messaging.NewClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		reportPublish = messaging.NewReportPublisher(kafkaClient.NewWriter(cfg.KafkaReportTopic), logger)
		orderService.WithReportPublisher(reportPublish)

		listener := service.NewLifecycleListener(reconciler, repos.tx, repos.cache, reportPublish, logger)
		consumer = messaging.NewLifecycleConsumer(
			kafkaClient.NewReader(cfg.KafkaLifecycleTopic, cfg.KafkaGroupID),
			listener,
			messaging.ConsumerOptions{Workers: cfg.ConsumerWorkers},
			logger,
		)

		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error("lifecycle consumer stopped with error", zap.Error(err))
			}
		}()
		logger.Info("kafka enabled",
			zap.Strings("brokers", kafkaClient.Brokers),
			zap.String("lifecycle_topic", cfg.KafkaLifecycleTopic),
			zap.String("report_topic", cfg.KafkaReportTopic),
		)
	} else {
		logger.Info("KAFKA_BROKERS not set, lifecycle consumer disabled")
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	handler.RegisterOrderLifecycleServer(grpcServer, handler.NewGRPCHandler(orderService, inventoryService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	gin.SetMode(gin.ReleaseMode)
	httpHandler := handler.NewHTTPHandler(catalogService, inventoryService, orderService, httpMetrics, registry, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Router(cfg.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Stop fetching and wait for in-flight events
	cancel()
	consumerWG.Wait()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}
	if reportPublish != nil {
		if err := reportPublish.Close(); err != nil {
			logger.Error("failed to close kafka writer", zap.Error(err))
		}
	}

	repos.close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", zap.Error(err))
	}
	logger.Info("connections closed")
}

func openRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repositories, error) {
	var repos repositories
	var closers []func()

	if cfg.DBDriver == storage.DriverMemory {
		store := storage.NewMemoryStore(cfg.IdempotencyTTL)
		repos.inventory, repos.orders, repos.products = store.Inventory(), store.Orders(), store.Products()
		repos.tx, repos.cache = store, store
		logger.Warn("using in-memory storage, data is lost on restart")
	} else {
		db, err := storage.OpenDatabase(storage.DatabaseOptions{
			Driver:          cfg.DBDriver,
			DSN:             cfg.DatabaseDSN,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			Tracing:         cfg.OtelEndpoint != "",
		}, logger)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := storage.Migrate(db); err != nil {
				return nil, err
			}
			logger.Info("database schema migrated")
		}
		repos.inventory = storage.NewInventoryRepository(db)
		repos.orders = storage.NewOrderRepository(db)
		repos.products = storage.NewProductRepository(db)
		repos.tx = storage.NewGormTransactor(db)
		closers = append(closers, func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		})

		// Process-local idempotency keys unless Redis is configured.
		repos.cache = storage.NewMemoryStore(cfg.IdempotencyTTL)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		adapter := storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL)
		if err := adapter.Ping(ctx); err != nil {
			return nil, err
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		repos.cache = adapter
		closers = append(closers, func() { rdb.Close() })
	}

	repos.close = func() {
		for _, c := range closers {
			c()
		}
	}
	return &repos, nil
}
