package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signet/internal/audit"
	"signet/internal/chain"
	"signet/internal/credential"
	"signet/internal/issuer"
	"signet/internal/issuer/registry"
	"signet/internal/platform/config"
	"signet/internal/platform/httpserver"
	"signet/internal/platform/logger"
	"signet/internal/platform/metrics"
	"signet/internal/platform/postgres"
	"signet/internal/platform/redis"
	"signet/internal/schema"
	httptransport "signet/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store credential.Store
	switch cfg.StorageMode {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := credential.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		store = pg
	case "memory":
		log.Warn("using in-memory storage, credentials will not survive restarts")
		store = credential.NewMemoryStore()
	}

	rdb, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	resolverOpts := []schema.Option{}
	if rdb != nil {
		defer rdb.Close()
		resolverOpts = append(resolverOpts, schema.WithCache(schema.NewRedisCache(rdb.Client)))
	}
	schemas := schema.NewResolver(cfg.IPFSGateway, resolverOpts...)

	reg, err := registry.New(cfg.IssuerKeys)
	if err != nil {
		log.Error("issuer registry invalid", "error", err)
		os.Exit(1)
	}

	pool := chain.NewPool(cfg.RPCEndpoints, cfg.ContractAddresses, cfg.ConfirmTimeout)

	var sink audit.Sink = audit.NewMemorySink()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		sink = kafkaSink
	}
	auditPub := audit.NewPublisher(sink)
	defer auditPub.Close()

	opts := []issuer.Option{
		issuer.WithAudit(auditPub),
		issuer.WithMetrics(metrics.New()),
		issuer.WithLogger(log),
	}
	if rdb != nil {
		opts = append(opts, issuer.WithStatusCache(issuer.NewRedisStatusCache(rdb.Client, log)))
	}
	service := issuer.New(reg, pool, schemas, store, opts...)

	router := httptransport.NewRouter(service, log)
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("issuer node listening", "addr", cfg.Addr, "issuers", len(cfg.IssuerKeys))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("issuer node stopped")
}
