package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"trustgate/internal/crossdomain"
	cdmemory "trustgate/internal/crossdomain/store/memory"
	"trustgate/internal/crossdomain/transport"
	synckafka "trustgate/internal/crossdomain/transport/kafka"
	"trustgate/internal/gateway"
	"trustgate/internal/gateway/adapters"
	"trustgate/internal/gateway/handler"
	"trustgate/internal/gateway/metrics"
	"trustgate/internal/gateway/pow"
	"trustgate/internal/gateway/pricing"
	"trustgate/internal/gateway/risk"
	"trustgate/internal/gateway/session"
	"trustgate/internal/platform/config"
	"trustgate/internal/platform/httpserver"
	"trustgate/internal/platform/logger"
	platformredis "trustgate/internal/platform/redis"
	"trustgate/internal/reputation"
	repmemory "trustgate/internal/reputation/store/memory"
	reppostgres "trustgate/internal/reputation/store/postgres"
	httptransport "trustgate/internal/transport/http"
	id "trustgate/pkg/domain"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := adapters.OpenRegistration{}

	// Feedback ledger: postgres when configured, in-memory otherwise.
	var feedbackStore reputation.FeedbackStore = repmemory.New()
	if cfg.PostgresDSN != "" {
		db, err := reppostgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := reppostgres.Migrate(ctx, db); err != nil {
			log.Error("ledger migration failed", "error", err)
			os.Exit(1)
		}
		feedbackStore = reppostgres.New(db)
	}

	ledger, err := reputation.NewService(feedbackStore, registry, reputation.WithLogger(log))
	if err != nil {
		log.Error("ledger init failed", "error", err)
		os.Exit(1)
	}

	// Cross-domain sync: kafka transport when brokers are configured.
	localDomain := id.DomainID(cfg.LocalDomain)
	var syncTransport crossdomain.Transport = transport.NewNoop()
	var kafkaTransport *synckafka.Transport
	if len(cfg.KafkaBrokers) > 0 {
		authority := crossdomain.AuthorityKey(os.Getenv("TRUSTGATE_AUTHORITY_KEY"))
		kafkaTransport, err = synckafka.NewTransport(cfg.KafkaBrokers, localDomain, authority, log)
		if err != nil {
			log.Error("kafka transport init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaTransport.Close()
		if err := kafkaTransport.EnsureTopic(ctx); err != nil {
			log.Error("kafka topic setup failed", "error", err)
			os.Exit(1)
		}
		syncTransport = kafkaTransport
	}

	sync, err := crossdomain.NewService(ledger, cdmemory.NewTrustStore(), cdmemory.NewRemoteStore(), syncTransport, crossdomain.WithLogger(log))
	if err != nil {
		log.Error("sync init failed", "error", err)
		os.Exit(1)
	}
	ledger.Subscribe(crossdomain.NewPropagator(sync, log))

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := synckafka.NewConsumer(cfg.KafkaBrokers, localDomain, sync, log)
		if err != nil {
			log.Error("kafka consumer init failed", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("sync consumer stopped", "error", err)
			}
		}()
	}

	// Session credential stores: redis when configured.
	var revocation session.RevocationList = session.NewRevocationList()
	var usage session.UsageStore = session.NewUsageStore()
	if cfg.RedisURL != "" {
		redisClient, err := platformredis.New(cfg.Redis())
		if err != nil {
			log.Error("redis unavailable", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		revocation = session.NewRedisRevocationList(redisClient.Client)
		usage = session.NewRedisUsageStore(redisClient.Client)
	}
	sessions, err := session.NewService(cfg.SessionSigningKey, "trustgate", revocation, usage)
	if err != nil {
		log.Error("session service init failed", "error", err)
		os.Exit(1)
	}

	gw, err := gateway.NewService(
		gateway.Policy{
			RequireRegistration: cfg.RequireRegistration,
			MinStake:            cfg.MinStake,
			MinReputation:       cfg.MinReputation,
			MaxPayloadBytes:     cfg.MaxPayloadBytes,
			SessionTTL:          cfg.SessionTTL,
			SessionMaxRequests:  cfg.SessionMaxRequests,
			SessionMaxCost:      cfg.SessionMaxCost,
		},
		registry,
		adapters.ZeroStake{},
		sync,
		risk.NewService(),
		pow.NewService(cfg.PowDifficulty, pow.DefaultValidity),
		sessions,
		pricing.NewEngine(pricing.Config{
			BasePrice:            cfg.BasePrice,
			StakeDiscountCeiling: cfg.StakeDiscountCeiling,
		}),
		gateway.WithLogger(log),
		gateway.WithMetrics(metrics.New()),
	)
	if err != nil {
		log.Error("gateway init failed", "error", err)
		os.Exit(1)
	}

	h := handler.New(gw, ledger, sync, log)
	router := httptransport.NewRouter(h, cfg.AdminToken, log)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting trustgate", "addr", cfg.Addr, "domain", cfg.LocalDomain)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
