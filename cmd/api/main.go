package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dynaprizes/waitlist/internal/http/handlers"
	"github.com/dynaprizes/waitlist/internal/mailer"
	"github.com/dynaprizes/waitlist/internal/notify"
	"github.com/dynaprizes/waitlist/internal/repository"
	"github.com/dynaprizes/waitlist/internal/repository/memory"
	"github.com/dynaprizes/waitlist/internal/repository/postgres"
	"github.com/dynaprizes/waitlist/internal/repository/redis"
	"github.com/dynaprizes/waitlist/internal/service"
	"github.com/dynaprizes/waitlist/pkg/config"
	"github.com/dynaprizes/waitlist/pkg/database"
	"github.com/dynaprizes/waitlist/pkg/events"
	"github.com/dynaprizes/waitlist/pkg/logger"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open participant store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	bus, err := openEventBus(cfg)
	if err != nil {
		logger.Error("Failed to start event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	svc := service.NewWaitlistService(store, bus, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(svc, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down waitlist API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Waitlist API shutdown error", "error", err)
		}
	}()

	logger.Info("Starting waitlist API", "port", cfg.Server.Port, "store", cfg.Store.Driver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Waitlist API error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.ParticipantStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		if cfg.Database.RunMigrations {
			if err := database.Migrate(cfg.Database.URL, postgres.Migrations, postgres.MigrationsDir); err != nil {
				return nil, nil, err
			}
		}
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewParticipantRepository(pool), pool.Close, nil

	case config.StoreRedis:
		client, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewParticipantRepository(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }, nil

	case config.StoreMemory:
		logger.Warn("Using in-memory store; participants are lost on restart")
		return memory.NewParticipantRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// openEventBus connects to NATS when configured; the separate notify worker
// then sends mail. Without NATS, welcome mail is sent in-process.
func openEventBus(cfg *config.Config) (events.EventBus, error) {
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("Publishing admissions to NATS", "url", cfg.NATS.URL)
		return bus, nil
	}

	mail, err := mailer.New(cfg.Email)
	if err != nil {
		return nil, err
	}
	bus := events.NewLocalEventBus(2, 256)
	if err := notify.NewWelcomeNotifier(mail).Register(bus, ""); err != nil {
		_ = bus.Close()
		return nil, err
	}
	return bus, nil
}
