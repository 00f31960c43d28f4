/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the medication dispense server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire notifier, metrics, and API handler
  4. Start the background reconcile sweep
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port                HTTP server port (default: 8080)
  -db                  SQLite database path (default: dispense.db)
                       Use ":memory:" for an in-memory database
  -timezone            IANA timezone for display formatting (default: UTC)
  -sweep-interval      Background reconcile interval; 0 disables the sweep
  -smtp-addr           SMTP relay host:port; empty logs reminders instead
  -smtp-from           Reminder sender address

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the background sweep
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the database connection

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pillbox/dispense-engine/api"
	"github.com/pillbox/dispense-engine/engine"
	"github.com/pillbox/dispense-engine/metrics"
	"github.com/pillbox/dispense-engine/notify"
	"github.com/pillbox/dispense-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "dispense.db", "SQLite database path")
	timezone := flag.String("timezone", "UTC", "IANA timezone for display formatting")
	sweepInterval := flag.Duration("sweep-interval", time.Minute, "background reconcile interval (0 disables)")
	smtpAddr := flag.String("smtp-addr", "", "SMTP relay host:port (empty logs reminders)")
	smtpFrom := flag.String("smtp-from", "dispenser@localhost", "reminder sender address")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		logger.Fatal("invalid timezone", zap.String("timezone", *timezone), zap.Error(err))
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Outbound reminder delivery
	var sender notify.Sender
	if *smtpAddr != "" {
		sender = &notify.SMTPSender{Addr: *smtpAddr, From: *smtpFrom}
	} else {
		sender = &notify.LogSender{Logger: logger}
	}

	clock := engine.SystemClock{}
	reminder := notify.NewReminder(sender, clock, logger)
	m := metrics.New()

	handler := api.NewHandler(store, engine.DefaultConfig(loc), clock, reminder, m, logger)
	router := api.NewRouter(handler)

	// Background reconcile sweep
	scheduler := api.NewReconcileScheduler(store, handler, logger)
	if *sweepInterval <= 0 {
		scheduler.Enabled = false
	} else {
		scheduler.CheckInterval = *sweepInterval
	}
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.Int("port", *port), zap.String("timezone", *timezone))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
