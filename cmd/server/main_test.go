package main

import (
	"testing"
	"time"

	"branch-supply/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.JWTSecret = "s3cret"
	cfg.Auth.SecureCookie = true
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Log.Version = "1.4.0"

	opts := handlerOptions(cfg)
	if opts.JWTSecret != "s3cret" || !opts.SecureCookie || opts.TokenTTL != 24*time.Hour {
		t.Errorf("auth options: %+v", opts)
	}
	if opts.RequestTimeout != 5*time.Second || opts.BodyLimitBytes != 1<<20 {
		t.Errorf("limits: %+v", opts)
	}
	if len(opts.AllowedOrigins) != 1 || opts.ServiceName != "branch-supply" || opts.Version != "1.4.0" {
		t.Errorf("identity: %+v", opts)
	}

	lc := loggerConfig(cfg)
	if lc.Level != "info" || lc.Environment != "development" || lc.ServiceName != "branch-supply" || lc.Version != "1.4.0" {
		t.Errorf("logger config: %+v", lc)
	}
}
