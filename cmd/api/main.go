package main

import (
	"context"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/ledger"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payment"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/reviews"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var st store.Store
	var ready []func(context.Context) error
	switch cfg.StoreDriver {
	case "memory":
		log.Printf("store: in-memory (data is lost on exit)")
		st = memstore.New()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
		st = &postgres.Store{DB: db}
		ready = append(ready, db.Ping)
	}

	// Redis
	cache := &redisx.Cache{}
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Printf("redis %s unreachable, continuing without cache until it recovers: %v", cfg.RedisAddr, err)
		}
		cache.RDB = rdb
	}

	// Kafka producer
	emitter := &events.Emitter{Producer: cfg.ServiceName}
	var prod *kafkax.Producer
	if cfg.PublishEvents && len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Start()
		emitter.Pub = prod
	} else {
		log.Printf("kafka: publishing disabled, events are discarded")
	}

	// Services & handler
	api := &httpx.API{
		Catalog:   &catalog.Service{Store: st, Cache: cache},
		Inventory: &inventory.Service{Store: st, Cache: cache},
		Orders: &orders.Service{
			Store:           st,
			Pricing:         orders.PricingFromConfig(cfg.Pricing),
			RestockOnCancel: cfg.RestockOnCancel,
			Events:          emitter,
			Cache:           cache,
		},
		Reviews:  &reviews.Service{Store: st, Events: emitter, Cache: cache},
		Ledger:   &ledger.Service{Store: st},
		Payments: payment.HostedCheckout{BaseURL: cfg.CheckoutBaseURL, ServiceURL: cfg.PublicURL},
		Cache:    cache,
		Ready: func(ctx context.Context) error {
			for _, check := range ready {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	router := httpx.NewRouter(api)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close() // flush pending events
		prod.WaitClosed()
	}
}
