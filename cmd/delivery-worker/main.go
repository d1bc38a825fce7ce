package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/devansh-sx/optishop/internal/config"
	"github.com/devansh-sx/optishop/internal/inventory/application"
	deliverykafka "github.com/devansh-sx/optishop/internal/inventory/infrastructure/kafka"
	inventorypg "github.com/devansh-sx/optishop/internal/inventory/infrastructure/postgres"
	"github.com/devansh-sx/optishop/pkg/idempotency"
	"github.com/devansh-sx/optishop/pkg/logging"
	"github.com/devansh-sx/optishop/pkg/shutdown"
	"github.com/devansh-sx/optishop/pkg/tracing"
)

func main() {
	log := logging.New("delivery-worker")
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load(log)

	tp, err := tracing.Init(ctx, "delivery-worker", cfg.OtelAddr, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	idem := idempotency.NewStore(rdb, 10*time.Minute)

	repo := inventorypg.NewRepository(log, pool)
	svc := application.NewService(log, repo)

	consumer := deliverykafka.NewConsumer(log, []string{cfg.KafkaAddr}, cfg.EventsTopic, "delivery-worker", svc, idem)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("delivery-worker shutdown")
}
