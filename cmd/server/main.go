/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the café booking server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (YAML + .env)
  2. Initialize SQLite store
  3. Optional: Redis availability cache, AMQP event publisher
  4. Create booking engine, apply the seed directory if given
  5. Configure HTTP router, start completion scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (optional; defaults apply without it)
  -port    HTTP server port, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for in-memory database
  -seed    Directory document (cafés, users) applied at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the completion scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close publisher, cache and database connections
  5. Exit

EXAMPLES:
  # Run with a config file
  ./server -config=./config.yaml

  # Run with in-memory database
  ./server -db=":memory:"

ENVIRONMENT:
  JWT_SECRET is used when auth.jwt_secret is unset. Any ${VAR} in the
  config file is expanded from the environment.

SEE ALSO:
  - config/config.go: Configuration
  - api/server.go: Router configuration
  - booking/engine.go: Booking engine
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
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/cafe-booking/api"
	"github.com/warp/cafe-booking/booking"
	"github.com/warp/cafe-booking/cache"
	"github.com/warp/cafe-booking/config"
	"github.com/warp/cafe-booking/events"
	"github.com/warp/cafe-booking/factory"
	"github.com/warp/cafe-booking/metrics"
	"github.com/warp/cafe-booking/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	seedPath := flag.String("seed", "", "YAML/JSON directory of cafés and users to load at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger := newLogger(cfg)

	if err := run(cfg, logger, *seedPath); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Log.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "cafe-booking").Logger()
}

func run(cfg *config.Config, logger zerolog.Logger, seedPath string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	secret := cfg.JWTSecret()
	if secret == "" {
		return errors.New("auth.jwt_secret (or JWT_SECRET) is required")
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	opts := []booking.Option{
		booking.WithLocation(loc),
		booking.WithLogger(logger.With().Str("component", "engine").Logger()),
	}

	// Optional availability cache
	if cfg.Redis.Address != "" {
		client := cache.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := cache.Ping(ctx, client)
		cancel()
		if err != nil {
			return err
		}
		opts = append(opts, booking.WithCache(cache.NewAvailability(client, cfg.Redis.Prefix, cfg.Redis.AvailabilityTTL)))
		logger.Info().Str("addr", cfg.Redis.Address).Msg("availability cache enabled")
	}

	// Optional event publisher
	if cfg.AMQP.URL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.Exchange())
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, booking.WithPublisher(pub))
		logger.Info().Str("exchange", cfg.Exchange()).Msg("event publishing enabled")
	}

	metrics.Register()
	engine := booking.NewEngine(store, opts...)

	if seedPath != "" {
		doc, err := factory.LoadDirectory(seedPath)
		if err != nil {
			return err
		}
		sum, err := factory.Apply(context.Background(), engine, doc)
		if err != nil {
			return fmt.Errorf("seed %s: %w", seedPath, err)
		}
		logger.Info().Int("cafes", sum.Cafes).Int("users", sum.Users).Int("credited", sum.Credited).Msg("directory seeded")
	}

	rps, burst := cfg.Limits()
	router := api.NewRouter(api.NewHandler(engine), api.RouterConfig{
		Logger:      logger,
		Auth:        api.NewAuthenticator(secret),
		Limiter:     api.NewRateLimiter(rps, burst),
		CORSOrigins: cfg.CORSOrigins(),
		Ready:       store.Ping,
	})

	scheduler := api.NewCompletionScheduler(engine, logger)
	scheduler.CheckInterval = cfg.CompletionSweep()
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port()),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Port()).Str("timezone", loc.String()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}

	logger.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}
