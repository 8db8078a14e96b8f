package main

import (
	"context"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/reviews"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver != "postgres" {
		log.Fatalf("reconciler needs STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatalf("reconciler needs KAFKA_BROKERS")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer for reconciliation reports
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 256)
	prod.Start()

	name := cfg.ServiceName + "-reconciler"
	rc := &reviews.Reconciler{
		Reviews: &reviews.Service{
			Store:  &postgres.Store{DB: db},
			Events: &events.Emitter{Pub: prod, Producer: name},
			Cache:  &redisx.Cache{RDB: rdb},
		},
		Dedup: &redisx.Cache{RDB: rdb},
		Name:  name,
	}

	// Consumer
	group, workers := cfg.Reconciler.Group, cfg.Reconciler.Workers
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.TopicReviews, workers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("reconciler started: group=%s topic=%s workers=%d", group, events.TopicReviews, workers)
		if err := cons.Start(ctx, rc.HandleReviewEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down reconciler...")
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}
