package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohamedebada21/last-online-halal/internal/config"
	"github.com/mohamedebada21/last-online-halal/internal/notify"
	"github.com/mohamedebada21/last-online-halal/internal/store/memory"
	"github.com/mohamedebada21/last-online-halal/internal/store/postgres"
	"github.com/mohamedebada21/last-online-halal/pkg/kafka"
	"github.com/mohamedebada21/last-online-halal/pkg/metrics"
)

const service = "storefront-notifier"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	if !kafkaClient.Enabled() {
		log.Fatalf("config error: KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		inbox notify.Inbox
		ping  func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		connectCtx, done := context.WithTimeout(ctx, 10*time.Second)
		pg, err := postgres.New(connectCtx, cfg.DatabaseURL, cfg.KafkaTopic)
		if err == nil {
			err = pg.Migrate(connectCtx)
		}
		done()
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pg.Close()
		inbox, ping = pg, pg.Ping
	} else {
		log.Printf("DATABASE_URL not set, de-duplicating in memory")
		inbox = memory.New(cfg.KafkaTopic)
	}

	reg := prometheus.NewRegistry()
	srvMetrics := metrics.NewServerMetrics(service, reg)
	shopMetrics := metrics.NewShopMetrics(reg)

	var notifier notify.Notifier = notify.LogNotifier{Service: service}
	if cfg.SendGridAPIKey != "" {
		notifier = notify.NewSendGrid(cfg.SendGridAPIKey, "Storefront", cfg.NotifyFromEmail)
	}
	consumer := &notify.Consumer{
		Reader: kafkaClient.NewReader(cfg.KafkaTopic, cfg.KafkaGroupID),
		Inbox:  inbox,
		Dispatcher: &notify.Dispatcher{
			Notifier:   notifier,
			AdminEmail: cfg.NotifyAdminEmail,
			Service:    service,
			Metrics:    shopMetrics,
		},
		Service: service,
	}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
				srvMetrics.Observe("health", http.StatusServiceUnavailable, start)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		srvMetrics.Observe("health", http.StatusOK, start)
	})
	r.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received %v, shutting down", sig)
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("%s listening on :%s (topic=%s group=%s)", service, cfg.Port, cfg.KafkaTopic, cfg.KafkaGroupID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
