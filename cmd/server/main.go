package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"medvault/internal/actors"
	actorshandler "medvault/internal/actors/handler"
	"medvault/internal/audit"
	"medvault/internal/events"
	jwttoken "medvault/internal/jwt_token"
	"medvault/internal/notify"
	notifyhandler "medvault/internal/notify/handler"
	"medvault/internal/platform/config"
	"medvault/internal/platform/httpserver"
	"medvault/internal/platform/kafka"
	"medvault/internal/platform/logger"
	"medvault/internal/platform/metrics"
	"medvault/internal/platform/postgres"
	redisplatform "medvault/internal/platform/redis"
	"medvault/internal/records"
	recordshandler "medvault/internal/records/handler"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores. Postgres when configured, in-memory otherwise so a bare
	// `go run` works.
	var (
		recordStore     records.Store
		correctionStore records.CorrectionStore
		txRunner        records.Tx
		actorStore      actors.Store
		notifyStore     notify.Store
		parkingLot      notify.ParkingLot
		auditStore      audit.Store
		auditSource     audit.OutboxSource
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		recordStore = records.NewPostgres(db)
		correctionStore = records.NewPostgresCorrections(db)
		txRunner = postgres.NewTxRunner(db)
		actorStore = actors.NewPostgres(db)
		notifyStore = notify.NewPostgres(db)
		parkingLot = notify.NewPostgresParkingLot(db)
		pgAudit := audit.NewPostgres(db)
		auditStore, auditSource = pgAudit, pgAudit
		log.Info("using postgres stores")
	} else {
		recordStore = records.NewInMemoryStore()
		correctionStore = records.NewInMemoryCorrectionStore()
		txRunner = records.NewInMemoryTx()
		actorStore = actors.NewInMemoryStore()
		notifyStore = notify.NewInMemoryStore()
		parkingLot = notify.NewInMemoryParkingLot()
		memAudit := audit.NewInMemory()
		auditStore, auditSource = memAudit, memAudit
		log.Warn("no MEDVAULT_POSTGRES_URL set, using in-memory stores")
	}

	rdb, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	m := metrics.New()
	bus := events.NewBus(log)
	notifyInbox := bus.Subscribe("notifications", 256)
	auditInbox := bus.Subscribe("audit", 256)

	actorService := actors.NewService(actorStore, bus, log, m)
	recordService := records.NewService(recordStore, correctionStore, actorService, txRunner, bus, log,
		records.WithCASRetry(cfg.CASRetries, cfg.CASRetryBackoff),
		records.WithMetrics(m),
	)
	dispatcher := notify.NewDispatcher(notifyStore, actorService, rdb, cfg.Redis.MarkTTL, log, m)
	dispatchWorker := notify.NewWorker(dispatcher, notifyInbox, cfg.DispatchRetryInterval, cfg.DispatchMaxAttempts, log, m,
		notify.WithParking(parkingLot))
	recorder := audit.NewRecorder(auditStore, auditInbox, log)
	inbox := notify.NewInbox(notifyStore)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := chi.NewRouter()
	recordshandler.New(recordService, log, m, jwtService).Register(router)
	actorshandler.New(actorService, log, m, jwtService).Register(router)
	notifyhandler.New(inbox, log, m, jwtService).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatchWorker.Run(runCtx) })
	g.Go(func() error { return recorder.Run(runCtx) })

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewClient(cfg.Kafka.Brokers)
		if err != nil {
			log.Error("kafka connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer client.Close()
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, 3); err != nil {
			log.Error("kafka topic setup failed", "error", err.Error())
			os.Exit(1)
		}
		relay := audit.NewRelay(auditSource, client, cfg.Kafka.Topic, 0, log, m)
		g.Go(func() error { return relay.Run(runCtx) })
		log.Info("audit relay enabled", "topic", cfg.Kafka.Topic)
	} else {
		log.Warn("no MEDVAULT_KAFKA_BROKERS set, audit events stay in the outbox")
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("medvault listening", "addr", cfg.Addr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
	bus.Close()
	log.Info("shutdown complete")
}
