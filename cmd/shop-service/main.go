package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	accountapp "github.com/devansh-sx/optishop/internal/account/application"
	accounthttp "github.com/devansh-sx/optishop/internal/account/infrastructure/http"
	accountpg "github.com/devansh-sx/optishop/internal/account/infrastructure/postgres"
	"github.com/devansh-sx/optishop/internal/config"
	inventoryapp "github.com/devansh-sx/optishop/internal/inventory/application"
	inventorypg "github.com/devansh-sx/optishop/internal/inventory/infrastructure/postgres"
	"github.com/devansh-sx/optishop/internal/order/application"
	orderhttp "github.com/devansh-sx/optishop/internal/order/infrastructure/http"
	orderpg "github.com/devansh-sx/optishop/internal/order/infrastructure/postgres"
	paymentapp "github.com/devansh-sx/optishop/internal/payment/application"
	paymentdom "github.com/devansh-sx/optishop/internal/payment/domain"
	paymenthttp "github.com/devansh-sx/optishop/internal/payment/infrastructure/http"
	paymentpg "github.com/devansh-sx/optishop/internal/payment/infrastructure/postgres"
	"github.com/devansh-sx/optishop/internal/payment/provider/oxapay"
	"github.com/devansh-sx/optishop/internal/payment/provider/razorpay"
	"github.com/devansh-sx/optishop/pkg/logging"
	"github.com/devansh-sx/optishop/pkg/outbox"
	"github.com/devansh-sx/optishop/pkg/shutdown"
	"github.com/devansh-sx/optishop/pkg/tracing"
)

func main() {
	log := logging.New("shop-service")
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load(log)

	tp, err := tracing.Init(ctx, "shop-service", cfg.OtelAddr, log)
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

	// Outbox relay
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaAddr),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
	defer writer.Close()
	store := orderpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.EventsTopic)
	relay := outbox.NewRelay(log, store, dispatch, "shop-service-relay")
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
		}
	}()

	// Repositories & services
	accountRepo := accountpg.NewRepository(log, pool)
	accountSvc := accountapp.NewService(accountRepo)

	rates := paymentdom.NewRateTable(cfg.USDRate)
	paymentRepo := paymentpg.NewRepository(log, pool)
	paymentSvc := paymentapp.NewService(log, paymentRepo, accountRepo, rates)

	stockRepo := inventorypg.NewRepository(log, pool)
	allocator := inventoryapp.NewService(log, stockRepo)

	orderRepo := orderpg.NewRepository(log, pool)
	orderSvc := application.NewService(log, orderRepo, accountRepo, allocator)

	verifiers := map[paymentdom.Provider]paymentapp.Verifier{
		paymentdom.ProviderRazorpay: razorpay.NewVerifier(cfg.RazorpayWebhookSecret),
		paymentdom.ProviderOxapay:   oxapay.NewVerifier(cfg.OxapaySecret),
	}

	paymentHandler := paymenthttp.NewHandler(log, paymentSvc, verifiers)
	orderHandler := orderhttp.NewHandler(log, orderSvc)
	accountHandler := accounthttp.NewHandler(log, accountSvc)

	r := chi.NewRouter()
	r.Mount("/webhooks", paymentHandler.WebhookRoutes())
	r.Route("/api", func(api chi.Router) {
		api.Mount("/payments", paymentHandler.APIRoutes())
		api.Mount("/orders", orderHandler.Routes())
		api.Mount("/accounts", accountHandler.Routes())
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Expiry sweep: payments the provider never resolved, and orders whose
	// debit committed but whose allocation was interrupted.
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := paymentSvc.ExpireStale(ctx, cfg.PaymentTTL); err != nil {
					log.Error("payment expiry sweep failed", "err", err)
				}
				if _, err := orderSvc.FailStale(ctx, cfg.OrderTTL); err != nil {
					log.Error("order refund sweep failed", "err", err)
				}
			}
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("shop-service shutdown complete")
}
