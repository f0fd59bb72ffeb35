package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelbrown/dealfeed/internal/config"
	"github.com/abelbrown/dealfeed/internal/coord"
	"github.com/abelbrown/dealfeed/internal/fetch"
	"github.com/abelbrown/dealfeed/internal/httpapi"
	"github.com/abelbrown/dealfeed/internal/logging"
	"github.com/abelbrown/dealfeed/internal/publish"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		// The logger is not configured yet.
		logging.Init(os.Stderr, logging.Options{})
		logging.Fatal("invalid configuration", "error", err)
	}
	if err := logging.Init(os.Stderr, logging.Options{Level: cfg.LogLevel, JSON: cfg.Production()}); err != nil {
		logging.Init(os.Stderr, logging.Options{})
		logging.Fatal("invalid log level", "level", cfg.LogLevel, "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defs, err := fetch.LoadDefinitions(cfg.CollectorsFile)
	if err != nil {
		logging.Fatal("load collectors", "file", cfg.CollectorsFile, "error", err)
	}
	collectors, err := fetch.Build(defs, cfg.CollectorTimeout)
	if err != nil {
		logging.Fatal("build collectors", "error", err)
	}
	if safety := cfg.SafetyPolicy(); safety != nil {
		for i, c := range collectors {
			collectors[i] = fetch.WithPrefilter(c, safety)
		}
	}

	rot, closeRotation, err := cfg.OpenRotation(ctx)
	if err != nil {
		logging.Fatal("open rotation store", "backend", cfg.RotationBackend, "error", err)
	}
	defer closeRotation()

	settings, err := cfg.Settings()
	if err != nil {
		logging.Fatal("settings", "error", err)
	}

	var opts []coord.Option
	if cfg.KafkaBrokers != "" {
		producer, err := publish.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			logging.Fatal("connect kafka", "brokers", cfg.KafkaBrokers, "error", err)
		}
		pub := publish.NewKafkaPublisher(producer, cfg.KafkaTopic, cfg.Scope())
		defer pub.Close()
		opts = append(opts, coord.WithPublisher(pub))
	}

	coordinator := coord.New(collectors, rot, settings, opts...)
	coordinator.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.New(coordinator, cfg.RefreshTimeout).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Info("listening", "addr", cfg.ListenAddr, "collectors", len(collectors),
		"strategy", cfg.Strategy, "rotation", cfg.RotationBackend)

	select {
	case <-ctx.Done():
		logging.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Error("server error", "error", err)
		}
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("http shutdown", "error", err)
	}
	coordinator.Wait()
}
