package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dynaprizes/waitlist/internal/mailer"
	"github.com/dynaprizes/waitlist/internal/notify"
	"github.com/dynaprizes/waitlist/pkg/config"
	"github.com/dynaprizes/waitlist/pkg/events"
	"github.com/dynaprizes/waitlist/pkg/logger"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.NATS.URL == "" {
		logger.Error("NATS_URL is required for the notify worker")
		os.Exit(1)
	}

	mail, err := mailer.New(cfg.Email)
	if err != nil {
		logger.Error("Failed to configure mailer", "error", err)
		os.Exit(1)
	}

	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}

	if err := notify.NewWelcomeNotifier(mail).Register(bus, cfg.NATS.Queue); err != nil {
		logger.Error("Failed to subscribe", "subject", events.ParticipantAdmitted, "error", err)
		_ = bus.Close()
		os.Exit(1)
	}
	logger.Info("Notify worker listening", "subject", events.ParticipantAdmitted, "queue", cfg.NATS.Queue, "provider", cfg.Email.Provider)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down notify worker...")
	if err := bus.Close(); err != nil {
		logger.Error("Notify worker shutdown error", "error", err)
	}
}
