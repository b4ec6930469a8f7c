package main

import (
	"context"
	"log"
	"time"

	"github.com/hudsor01/abuseguard/internal/analytics"
	"github.com/hudsor01/abuseguard/internal/config"
	"github.com/hudsor01/abuseguard/internal/events"
	"github.com/hudsor01/abuseguard/internal/httpserver"
	"github.com/hudsor01/abuseguard/internal/ratelimit"
)

// evictInterval is how often idle admission records are swept.
const evictInterval = 5 * time.Minute

// main boots the service: config → audit store → record store →
// engine → HTTP server.
func main() {
	// Load runtime config from environment (DB_URL, ADMIN_TOKEN, ...).
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Durable audit store (Postgres); schema self-bootstraps so
	// `docker compose up --build` is enough.
	eventStore, err := events.NewStore(cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer eventStore.Close()

	if err := eventStore.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	// Admission limits: built-in defaults, optionally overridden by a
	// YAML limits file.
	limits := ratelimit.DefaultConfig()
	if cfg.LimitsFile != "" {
		limits, err = ratelimit.LoadLimits(cfg.LimitsFile)
		if err != nil {
			log.Fatal(err)
		}
	}

	// Record store: Redis when configured, in-memory otherwise. The
	// in-memory store means single-instance enforcement only; Redis
	// gives shared (approximate) enforcement across instances.
	var recordStore ratelimit.RecordStore = ratelimit.NewMemoryStore()
	if cfg.RedisAddr != "" {
		redisStore := ratelimit.NewRedisStore(ratelimit.RedisConfig{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisStore.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		defer redisStore.Close()
		recordStore = redisStore
		log.Printf("rate-limit records backed by redis at %s", cfg.RedisAddr)
	}

	engine := ratelimit.NewEngine(recordStore, limits)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.StartEvictor(ctx, evictInterval)

	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Engine:     engine,
		Aggregator: analytics.NewAggregator(engine),
		Events:     eventStore,
		Logger:     events.NewLogger(eventStore),
		Readiness:  eventStore,
	})

	log.Printf("server started on %s", cfg.ListenAddr)
	log.Fatal(router.Run(cfg.ListenAddr))
}
