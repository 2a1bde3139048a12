package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/sheikh-saqib/network-ledger/internal/api"
	"github.com/sheikh-saqib/network-ledger/internal/cascade"
	"github.com/sheikh-saqib/network-ledger/internal/config"
	"github.com/sheikh-saqib/network-ledger/internal/events/bus"
	"github.com/sheikh-saqib/network-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/network"
	"github.com/sheikh-saqib/network-ledger/internal/notification"
	"github.com/sheikh-saqib/network-ledger/internal/pkg/logger"
	"github.com/sheikh-saqib/network-ledger/internal/storage"
	"github.com/sheikh-saqib/network-ledger/internal/storage/graph"
	"github.com/sheikh-saqib/network-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/network-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/network-ledger/internal/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	defer provider.Shutdown(context.Background())

	closers := []func(){}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var ledgerStore interfaces.LedgerRepository
	switch cfg.Storage.Ledgers {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		closers = append(closers, func() { db.Close() })
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		pg := postgres.NewPostgresLedgerStore(db)
		if cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
		}
		ledgerStore = pg
	default:
		ledgerStore = memory.NewLedgerStore()
	}

	var members interfaces.MemberRepository
	switch cfg.Storage.Members {
	case config.BackendNeo4j:
		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return err
		}
		closers = append(closers, func() { client.Close(context.Background()) })
		members = graph.NewMemberStore(client)
	default:
		members = memory.NewMemberStore()
	}

	var tracker interfaces.ProgressTracker
	switch cfg.Storage.Progress {
	case config.BackendRedis:
		rdb, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		closers = append(closers, func() { rdb.Close() })
		tracker = redis.NewProgressTracker(rdb, cfg.Redis.HashKey)
	default:
		tracker = memory.NewProgressTracker()
	}

	b := bus.New()
	outbound := bus.Fanout{b}
	var notifier interfaces.NotificationService = notification.NewLogNotifier(log)
	if cfg.Kafka.Enabled() {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		closers = append(closers, func() { publisher.Close() })
		outbound = append(outbound, publisher)
		notifier = notification.NewPublisher(publisher)
	}

	ledgers := storage.NewPublishingLedgerRepository(ledgerStore, outbound, log)

	engine, err := cascade.New(cascade.Dependencies{
		Members:         members,
		Ledgers:         ledgers,
		Notifier:        notifier,
		Tracker:         tracker,
		Failures:        cascade.NewDeadLetterSink(outbound),
		Meter:           provider.Meter("github.com/sheikh-saqib/network-ledger/internal/cascade"),
		Log:             log,
		MaxAttempts:     cfg.Cascade.MaxAttempts,
		InitialInterval: cfg.Cascade.InitialInterval,
		MaxInterval:     cfg.Cascade.MaxInterval,
	})
	if err != nil {
		return err
	}
	if err := engine.Register(b); err != nil {
		return err
	}
	if err := network.NewService(members, ledgers, notifier, log).Register(b); err != nil {
		return err
	}

	if cfg.Cascade.ResumeOnStart {
		outcomes, err := engine.ResumeIncomplete(ctx)
		if err != nil {
			log.Error("resume incomplete cascades failed", "error", err)
		} else if len(outcomes) > 0 {
			log.Info("resumed incomplete cascades", "count", len(outcomes))
		}
	}

	errc := make(chan error, 2)

	if cfg.Kafka.Enabled() {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     cfg.Kafka.Brokers,
			GroupID:     cfg.Kafka.GroupID,
			TopicPrefix: cfg.Kafka.TopicPrefix,
		}, b, log)
		closers = append(closers, func() { consumer.Close() })
		go func() { errc <- consumer.Run(ctx) }()
	}

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewHandler(ledgers, b, reader, log),
	}
	go func() {
		log.Info("starting server", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return err
		}
		<-ctx.Done()
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
