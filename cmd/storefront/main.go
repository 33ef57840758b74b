package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mohamedebada21/last-online-halal/internal/cart"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/config"
	"github.com/mohamedebada21/last-online-halal/internal/httpapi"
	"github.com/mohamedebada21/last-online-halal/internal/identity"
	"github.com/mohamedebada21/last-online-halal/internal/notify"
	"github.com/mohamedebada21/last-online-halal/internal/order"
	"github.com/mohamedebada21/last-online-halal/internal/store/memory"
	"github.com/mohamedebada21/last-online-halal/internal/store/postgres"
	"github.com/mohamedebada21/last-online-halal/pkg/kafka"
	"github.com/mohamedebada21/last-online-halal/pkg/logging"
	"github.com/mohamedebada21/last-online-halal/pkg/metrics"
	"github.com/mohamedebada21/last-online-halal/pkg/outbox"
	"github.com/mohamedebada21/last-online-halal/pkg/telemetry"
)

const service = "storefront"

// backend is everything the services need from the system of record.
type backend interface {
	catalog.Store
	order.Store
	identity.Users
	outbox.Source
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, service, cfg.Tracing)
	if err != nil {
		log.Fatalf("tracing setup error: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, ping, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer closeStore()

	carts, sessions, closeRedis, err := openSessions(ctx, cfg)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer closeRedis()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srvMetrics := metrics.NewServerMetrics(service, reg)
	shopMetrics := metrics.NewShopMetrics(reg)

	catalogSvc := catalog.NewService(store)
	cartSvc := cart.NewService(carts, store, cfg.Tax, shopMetrics)
	identitySvc := identity.NewService(store, sessions, cfg.SessionTTL)
	orderSvc := order.NewService(store, cartSvc, store, order.Config{
		TaxRate:      cfg.Tax,
		DeliveryLead: cfg.DeliveryLead(),
	}, shopMetrics)

	if cfg.AdminEmail != "" {
		admin, err := identitySvc.EnsureAdmin(ctx, identity.Registration{
			Name:     cfg.AdminName,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			log.Fatalf("admin bootstrap error: %v", err)
		}
		logging.Log(logging.Fields{Service: service, UserID: string(admin.ID), Step: "admin_bootstrap", Status: "ok"})
	}

	relay := &outbox.Relay{
		Source:    store,
		Publisher: newPublisher(cfg, shopMetrics),
		Interval:  cfg.OutboxInterval,
		BatchSize: cfg.OutboxBatch,
		Service:   service,
		Metrics:   shopMetrics,
	}
	go relay.Run(ctx)

	api := httpapi.New(httpapi.Deps{
		Catalog:  catalogSvc,
		Carts:    cartSvc,
		Orders:   orderSvc,
		Identity: identitySvc,
		Metrics:  srvMetrics,
		Ping:     ping,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(api.Router(reg, cfg.RequestTimeout), service),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received %v, shutting down", sig)
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("%s listening on :%s", service, cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

// openStore uses Postgres when DATABASE_URL is set and an in-process store
// otherwise.
func openStore(ctx context.Context, cfg config.Config) (backend, func(context.Context) error, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL not set, using in-memory store")
		return memory.New(cfg.KafkaTopic), nil, func() {}, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pg, err := postgres.New(connectCtx, cfg.DatabaseURL, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pg.Migrate(connectCtx); err != nil {
		pg.Close()
		return nil, nil, nil, err
	}
	return pg, pg.Ping, pg.Close, nil
}

func openSessions(ctx context.Context, cfg config.Config) (cart.Store, identity.Sessions, func(), error) {
	if cfg.RedisURL == "" {
		return cart.NewMemoryStore(), identity.NewMemorySessions(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	return cart.NewRedisStore(client, cfg.CartTTL), identity.NewRedisSessions(client), func() { _ = client.Close() }, nil
}

// newPublisher ships outbox records to Kafka when brokers are configured.
// Without Kafka the emails are sent from this process.
func newPublisher(cfg config.Config, m *metrics.ShopMetrics) outbox.Publisher {
	kc := kafka.NewClient(cfg.KafkaBrokers)
	if kc.Enabled() {
		return &kafka.OutboxPublisher{Writer: kc.NewWriter(cfg.KafkaTopic)}
	}
	return &notify.Dispatcher{
		Notifier:   newNotifier(cfg),
		AdminEmail: cfg.NotifyAdminEmail,
		Service:    service,
		Metrics:    m,
	}
}

func newNotifier(cfg config.Config) notify.Notifier {
	if cfg.SendGridAPIKey == "" {
		return notify.LogNotifier{Service: service}
	}
	return notify.NewSendGrid(cfg.SendGridAPIKey, "Storefront", cfg.NotifyFromEmail)
}
