package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	webAdapter "branch-supply/internal/adapters/web"
	"branch-supply/internal/bootstrap"
	"branch-supply/internal/config"
	"branch-supply/internal/logger"
	"branch-supply/internal/scheduler"
)

func main() {
	envFile := pflag.String("env", "", "path to a .env file")
	configFile := pflag.String("config", "", "path to a YAML config file (default $CONFIG_FILE)")
	migrate := pflag.Bool("migrate", true, "apply pending migrations on start")
	pflag.Parse()

	cfg, err := config.Load(*envFile, *configFile)
	if err != nil {
		boot := logger.New(logger.Config{})
		boot.Fatal().Err(err).Msg("config")
	}
	log := logger.New(loggerConfig(cfg))
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{Migrate: *migrate, ClientName: cfg.Log.ServiceName})
	if err != nil {
		log.Fatal().Err(err).Msg("startup")
	}
	defer rt.Close()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, rt.Service, log)
		if err == nil {
			err = sched.Start()
		}
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler")
		}
	}

	handler := webAdapter.NewHandler(rt.Service, handlerOptions(cfg), log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	log.Info().Msg("server stopped")
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
		ServiceName: cfg.Log.ServiceName,
		Version:     cfg.Log.Version,
	}
}

func handlerOptions(cfg *config.Config) webAdapter.Options {
	return webAdapter.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenTTL:       cfg.Auth.TokenTTL,
		SecureCookie:   cfg.Auth.SecureCookie,
		RequestTimeout: cfg.Server.RequestTimeout,
		BodyLimitBytes: cfg.Server.BodyLimitBytes,
		ServiceName:    cfg.Log.ServiceName,
		Version:        cfg.Log.Version,
	}
}
