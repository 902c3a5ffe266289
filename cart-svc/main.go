package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "overcooked-storefront/cart-svc/internal/api/http"
	"overcooked-storefront/cart-svc/internal/events"
	"overcooked-storefront/cart-svc/internal/notify"
	"overcooked-storefront/cart-svc/internal/service"
	"overcooked-storefront/cart-svc/internal/storage"
	"overcooked-storefront/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "cart-svc",
		Usage: "Storefront cart service",
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the cart HTTP service",
				Action: func(ctx context.Context, c *cli.Command) error {
					return serve(ctx)
				},
			},
			{
				Name:  "generate-keys",
				Usage: "Generate guest session keys for .env",
				Action: func(ctx context.Context, c *cli.Command) error {
					authKey, encKey, err := config.GenerateSessionKeys()
					if err != nil {
						return err
					}
					fmt.Printf("SESSION_AUTH_KEY=%s\n", authKey)
					fmt.Printf("SESSION_ENC_KEY=%s\n", encKey)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

type app struct {
	handler http.Handler
	bus     *events.Bus
	relay   *events.RedisRelay
}

// newApp wires the cart service over already opened connections. writer may
// be nil, in which case events are not streamed to Kafka.
func newApp(cfg config.Config, db *sql.DB, rdb *redis.Client, client storage.HTTPClient, writer events.MessageWriter, keys [][]byte) *app {
	origin := uuid.New().String()
	relay := events.NewRedisRelay(rdb, origin)
	sinks := []events.Sink{relay}
	if writer != nil {
		sinks = append(sinks, events.NewKafkaSink(writer))
	}
	bus := events.NewBus(sinks...)

	notices := notify.NewCenter(cfg.NoticeTTL)
	remote := storage.NewRemoteStore(cfg.BackendURL, client)
	local := storage.NewLocalStore(storage.NewRedisKV(rdb, cfg.GuestTTL))
	cartSvc := service.NewCartService(remote, local, notices, bus, origin)
	catalog := storage.NewPostgresCatalog(db)

	handler := httpapi.NewHandler(cartSvc, catalog, notices, bus, httpapi.NewGuestSessions(cfg.CookieSecure, keys...))
	handler.AllowedOrigins = cfg.AllowedOrigins
	return &app{
		handler: httpapi.NewRouter(handler, cfg.AllowedOrigins),
		bus:     bus,
		relay:   relay,
	}
}

func serve(ctx context.Context) error {
	cfg := config.Load()

	db := config.MustInitPostgres()
	defer db.Close()
	if err := storage.EnsureSchema(db); err != nil {
		return err
	}

	rdb := config.MustInitRedis()
	defer rdb.Close()

	var writer events.MessageWriter
	if os.Getenv("KAFKA_BROKER") != "" {
		kw := config.NewKafkaWriter(cfg.EventsTopic)
		defer kw.Close()
		writer = kw
	} else {
		log.Println("[cart-svc] KAFKA_BROKER not set, cart events stay internal")
	}

	keys, err := cfg.SessionKeys()
	if err != nil {
		return err
	}

	a := newApp(cfg, db, rdb, &http.Client{Timeout: cfg.RemoteTimeout}, writer, keys)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.relay.Run(ctx, a.bus); err != nil {
			log.Printf("[cart-svc] relay stopped: %v", err)
		}
	}()

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.handler,
	}

	go func() {
		log.Printf("Cart Service starting on :%s (backend %s)", cfg.Port, cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[cart-svc] listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[cart-svc] shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[cart-svc] shutdown: %v", err)
	}
	a.bus.Wait()
	log.Println("[cart-svc] stopped")
	return nil
}
