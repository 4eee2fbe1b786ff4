package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/fieldcam/internal/ingestion"
	"github.com/your-org/fieldcam/pkg/config"
	"github.com/your-org/fieldcam/pkg/kafka"
	"github.com/your-org/fieldcam/pkg/logger"
	"github.com/your-org/fieldcam/pkg/metrics"
	"github.com/your-org/fieldcam/pkg/storage/docstore"
	"github.com/your-org/fieldcam/pkg/storage/objectstore"
	"github.com/your-org/fieldcam/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes:  parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	// Dependency construction failures leave the service in degraded mode:
	// /healthz keeps serving, /ingest reports a configuration error.
	var configErr error

	var store objectstore.Client
	store, configErr = objectstore.New(ctx, objectstore.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		AuthURL:   cfg.Storage.AuthURL,
		Tenant:    cfg.Storage.Tenant,
		Domain:    cfg.Storage.Domain,
	})
	if configErr != nil {
		logr.Error("init object store, serving degraded", zap.Error(configErr))
	}

	var records docstore.Client
	if configErr == nil {
		records, configErr = docstore.New(docstore.Config{
			Provider:   cfg.Docstore.Provider,
			URI:        cfg.Docstore.URI,
			Database:   cfg.Docstore.Database,
			Collection: cfg.Docstore.Collection,
			Path:       cfg.Docstore.Path,
			Timeout:    cfg.Docstore.Timeout,
		})
		if configErr != nil {
			logr.Error("init record store, serving degraded", zap.Error(configErr))
		}
	}

	var producer ingestion.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.IngestionTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
	}

	account := cfg.Storage.Account
	if account == "" {
		account = cfg.Storage.Endpoint
	}

	service := ingestion.NewService(ingestion.Params{
		Store:    store,
		Records:  records,
		Producer: producer,
		Logger:   logr,
		Account:  account,
		Bucket:   cfg.Storage.Bucket,
	})

	var promMetrics *metrics.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		promMetrics = metrics.New("fieldcam")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promMetrics.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logr.Info("metrics listener starting", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logr.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	handler := ingestion.NewHTTPHandler(ingestion.HandlerParams{
		Service:      service,
		Logger:       logr,
		Metrics:      promMetrics,
		Token:        cfg.Auth.Token,
		MaxSizeBytes: cfg.Upload.MaxSizeBytes,
		FormMemBytes: cfg.Upload.MultipartMemBytes,
		ConfigErr:    configErr,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logr.Error("metrics listener shutdown failed", zap.Error(err))
			}
		}
		if err := service.Close(shutdownCtx); err != nil {
			logr.Error("service shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("ingestion service starting", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

func parseResourceAttributes(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	attrs := map[string]string{}
	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
