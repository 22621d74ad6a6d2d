package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"parking-facility/internal/config"
	"parking-facility/internal/events"
	"parking-facility/internal/facility"
	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
	"parking-facility/internal/persistence"
	"parking-facility/internal/server"
	"parking-facility/internal/shell"
	"parking-facility/internal/telemetry"
)

var (
	mode = flag.String("mode", "", "Mode to run: cli, server, or both (overrides MODE)")
	port = flag.Int("port", 0, "Port for HTTP server (overrides PORT)")
)

type app struct {
	cfg       *config.Config
	telemetry *telemetry.Provider
	facility  *facility.Facility
	publisher events.Publisher
	closeKV   func() error
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch cfg.Mode {
	case config.ModeCLI:
		a.runCLI(ctx, cancel, sigChan)
	case config.ModeServer:
		a.runServer(ctx, cancel, sigChan)
	case config.ModeBoth:
		a.runBoth(ctx, cancel, sigChan)
	}
}

func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	tp := telemetry.NewNoopProvider()
	if cfg.OTelEnabled {
		var err error
		tp, err = telemetry.NewProvider(ctx, telemetry.Config{
			ServiceName: cfg.OTelServiceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.OTelEndpoint,
		})
		if err != nil {
			return nil, err
		}
	}

	logging.Init(cfg.OTelServiceName, cfg.Environment)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	kv, closeKV, err := persistence.OpenKV(ctx, persistence.Options{
		Backend:  cfg.StoreBackend,
		Path:     cfg.StorePath,
		RedisURL: cfg.RedisURL,
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "store opened", "backend", cfg.StoreBackend, "key", cfg.StoreKey)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.EventsEnabled {
		p, err := events.NewAMQPPublisher(ctx, cfg.AMQPURL, cfg.EventsQueue)
		if err != nil {
			logging.Warn(ctx, "event publishing disabled", "error", err)
		} else {
			publisher = p
		}
	}

	adapter := persistence.NewAdapter(kv, cfg.StoreKey, loc)
	clock := parking.SystemClock{Location: loc}

	f, err := facility.Open(ctx, cfg.ParkingOptions(clock), adapter, publisher, tp)
	if err != nil {
		_ = closeKV()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		telemetry: tp,
		facility:  f,
		publisher: publisher,
		closeKV:   closeKV,
	}, nil
}

func (a *app) runCLI(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		logging.Info(ctx, "shutting down")
		cancel()
	}()

	shell.New(a.facility, a.telemetry, os.Stdin, os.Stdout).Run(ctx)
}

func (a *app) runServer(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	srv := server.NewServer(a.cfg.Port, a.facility, a.cfg.OTelServiceName)

	go func() {
		<-sigChan
		logging.Info(ctx, "received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error(ctx, "server shutdown error", "error", err)
		}

		cancel()
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(ctx, "server error", "error", err)
	}
}

func (a *app) runBoth(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	srv := server.NewServer(a.cfg.Port, a.facility, a.cfg.OTelServiceName)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan struct{}, 1)
	go func() {
		shell.New(a.facility, a.telemetry, os.Stdin, os.Stdout).Run(ctx)
		cliDone <- struct{}{}
	}()

	go func() {
		<-sigChan
		logging.Info(ctx, "received shutdown signal")
		cancel()
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "server error", "error", err)
		}
	case <-cliDone:
		logging.Info(ctx, "CLI exited")
	case <-ctx.Done():
		logging.Info(ctx, "context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server shutdown error", "error", err)
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.publisher.Close(); err != nil {
		logging.Warn(ctx, "error closing event publisher", "error", err)
	}
	if err := a.closeKV(); err != nil {
		logging.Warn(ctx, "error closing store", "error", err)
	}

	logging.Info(ctx, "shutting down telemetry")
	if err := a.telemetry.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down telemetry: %v", err)
	}
}
