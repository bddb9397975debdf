package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/travelika/forest-bookings/internal/booking"
	"github.com/travelika/forest-bookings/internal/http/handlers"
	"github.com/travelika/forest-bookings/internal/ledger"
	"github.com/travelika/forest-bookings/internal/notify"
	"github.com/travelika/forest-bookings/internal/platform/mailer"
	"github.com/travelika/forest-bookings/internal/session"
	"github.com/travelika/forest-bookings/pkg/config"
	"github.com/travelika/forest-bookings/pkg/events"
	"github.com/travelika/forest-bookings/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Open the ledger
	store, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Event bus: NATS when configured, in-process otherwise
	bus, err := openBus(cfg)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	// Receipt mail
	mail := openMailer(cfg)
	if err := notify.NewNotifier(mail).Start(bus); err != nil {
		logger.Error("Failed to start notifier", "error", err)
		os.Exit(1)
	}

	// Services
	sessions := session.NewManager(store, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.Auth.CookieSecure)
	bookings := booking.NewService(store, bus)

	// Router
	router := handlers.NewRouter(
		handlers.NewAuthHandler(sessions),
		handlers.NewBookingsHandler(bookings, sessions),
		sessions,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down booking service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Booking service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting booking service", "port", cfg.Server.Port, "store", cfg.Store.Driver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Booking service error", "error", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return ledger.OpenPostgres(context.Background(), cfg.Store.DatabaseURL, cfg.Store.OpTimeout)
	default:
		return ledger.OpenSQLite(cfg.Store.SQLitePath, cfg.Store.OpTimeout)
	}
}

func openBus(cfg *config.Config) (events.EventBus, error) {
	if cfg.NATS.URL == "" {
		return events.NewMemoryEventBus(), nil
	}
	return events.NewNATSEventBus(cfg.NATS.URL)
}

func openMailer(cfg *config.Config) mailer.Service {
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		return mailer.NewDevMailer()
	}
	return mailer.NewMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
}
