// Authd runs the credential/session background loops: the outbox drainer
// that publishes auth events to the bus, and the reconciler that finishes
// interrupted lock cascades. Set DATABASE_URL, MONGO_URL, and TOKEN_SECRET;
// KAFKA_BROKERS enables publication (without it events stay staged in the
// outbox).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	accountrepo "authgate/internal/account/repository"
	"authgate/internal/config"
	"authgate/internal/db"
	"authgate/internal/engine"
	"authgate/internal/event/outbox"
	"authgate/internal/event/publisher"
	"authgate/internal/security"
	sessionrepo "authgate/internal/session/repository"
	"authgate/internal/wire"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("authd: DATABASE_URL is required")
	}
	if cfg.MongoURL == "" {
		log.Fatal("authd: MONGO_URL is required")
	}
	if cfg.TokenSecret == "" {
		log.Fatal("authd: TOKEN_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := db.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pg.Close()

	mongoClient, err := db.OpenMongo(ctx, cfg.MongoURL)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("mongo disconnect: %v", err)
		}
	}()

	codec, err := wire.NewCodec([]byte(cfg.TokenSecret))
	if err != nil {
		log.Fatalf("codec: %v", err)
	}

	accounts := accountrepo.NewPostgresRepository(pg)
	sessions := sessionrepo.NewMongoRepository(mongoClient.Database(cfg.MongoDatabase))
	hasher := security.NewHasher(cfg.BcryptCost)
	eng := engine.NewEngine(accounts, sessions, codec, hasher,
		cfg.TokenTTLDuration(), cfg.SessionTTLDuration())

	reconciler := engine.NewReconciler(eng, cfg.ReconcileDuration())
	go reconciler.Run(ctx)
	log.Printf("authd: reconciler running every %s", cfg.ReconcileDuration())

	brokers := cfg.KafkaBrokersList()
	if len(brokers) > 0 {
		pub := publisher.NewKafkaPublisher(brokers, cfg.AuthEventTopic, codec)
		defer pub.Close()
		drainer := outbox.NewDrainer(outbox.NewPostgresOutbox(pg), pub, cfg.OutboxPollDuration(), 0)
		go drainer.Run(ctx)
		log.Printf("authd: outbox drainer publishing to %s every %s", cfg.AuthEventTopic, cfg.OutboxPollDuration())
	} else {
		log.Print("authd: KAFKA_BROKERS not set; events stay staged in the outbox")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("authd: shutting down...")
	cancel()
	log.Println("authd: stopped")
}
