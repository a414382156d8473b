/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the worktrack server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize logging and tracing
  3. Open the SQLite store behind a timeout/circuit-breaker wrapper
  4. Open the catalog and apply the seed file, if any
  5. Build the holiday calendar
  6. Wire the event publishers, services and HTTP handler
  7. Start the missing-attendance scheduler and the HTTP server

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides HTTP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Flush traces and close databases

EXAMPLES:
  JWT_SECRET=dev ./server -db="./data/worktrack.db"
  JWT_SECRET=dev ./server -db=":memory:" -port=3000

ENVIRONMENT:
  See config/config.go for every key and its default.

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/resilient/resilient.go: Store timeouts and circuit breaker
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/api"
	"github.com/warp/worktrack/balance"
	"github.com/warp/worktrack/calendar"
	"github.com/warp/worktrack/catalog"
	"github.com/warp/worktrack/config"
	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/events"
	"github.com/warp/worktrack/logging"
	"github.com/warp/worktrack/schedule"
	"github.com/warp/worktrack/store/resilient"
	"github.com/warp/worktrack/store/sqlite"
	"github.com/warp/worktrack/telemetry"
)

func main() {
	// Flags
	port := flag.String("port", "", "HTTP server port (overrides HTTP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if *port != "" {
		cfg.HTTPPort = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()

	// Tracing
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:  "worktrack",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Stdout:       cfg.TraceStdout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracing")
	}

	// Initialize store
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			log.WithError(err).Fatal("Failed to create database directory")
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()
	store := resilient.New(db, cfg.Breaker(), log)

	// Catalog shares the database file
	cat, err := catalog.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open catalog")
	}
	defer cat.Close()
	if cfg.CatalogSeedFile != "" {
		seed, err := cat.LoadSeed(ctx, cfg.CatalogSeedFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to apply catalog seed")
		}
		log.WithFields(logrus.Fields{
			"employees":      len(seed.Employees),
			"shift_types":    len(seed.ShiftTypes),
			"change_reasons": len(seed.ChangeReasons),
		}).Info("Catalog seed applied")
	}

	// Holidays
	holidays, err := holidayCalendar(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to load holidays")
	}
	gen := calendar.NewGenerator(holidays)

	rules, err := cfg.BalanceRules()
	if err != nil {
		log.WithError(err).Fatal("Invalid balance rules")
	}

	// Events
	publisher, err := eventPublisher(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize event publisher")
	}

	// Services
	deps := schedule.Deps{
		Store:   store,
		Catalog: cat,
		Events:  publisher,
		Log:     log,
	}
	missing := schedule.NewMissingAttendanceCheck(deps)
	handler := &api.Handler{
		Shifts:     schedule.NewShiftService(deps),
		Exchanges:  schedule.NewExchangeService(deps),
		Copier:     schedule.NewPlanCopier(deps, cfg.CopyWorkers),
		Attendance: schedule.NewAttendanceService(deps),
		Missing:    missing,
		Balance:    balance.NewAggregator(store, cat, gen, rules, log),
		Calendar:   gen,
		Catalog:    cat,
		Seeder:     cat,
		Ping:       store.Ping,
		Log:        log,
	}

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})

	// Background check
	scheduler := api.NewMissingAttendanceScheduler(missing, log)
	scheduler.CheckInterval = cfg.MissingCheckInterval
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to flush traces")
	}

	log.Info("Server stopped")
}

// holidayCalendar merges the file-based holidays over the country calendar.
func holidayCalendar(cfg config.Config) (core.HolidayCalendar, error) {
	country, err := calendar.ForCountry(cfg.HolidayCountry, cfg.StandardHours())
	if err != nil {
		return nil, err
	}
	if cfg.HolidaysFile == "" {
		return country, nil
	}
	file, err := calendar.LoadYAML(cfg.HolidaysFile, cfg.StandardHours())
	if err != nil {
		return nil, err
	}
	return calendar.Merge(file, country), nil
}

func eventPublisher(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (events.Publisher, error) {
	logPub := events.LogPublisher{Log: log.WithField("component", "events")}
	if cfg.SQSQueueURL == "" {
		return logPub, nil
	}
	client, err := events.NewSQSClient(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("sqs client: %w", err)
	}
	log.WithField("queue", cfg.SQSQueueURL).Info("Publishing events to SQS")
	return events.Multi{logPub, events.NewSQSPublisher(client, cfg.SQSQueueURL)}, nil
}
