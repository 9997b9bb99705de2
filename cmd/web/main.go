package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"mockup-studio/internal/app"
	"mockup-studio/internal/config"
	"mockup-studio/internal/httpclient"
	"mockup-studio/internal/web"
)

//go:embed static/*
var staticFS embed.FS

func main() {
	if err := run(); err != nil {
		slog.Error("web stopped", "err", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so the deferred Sentry flush always runs.
func run() (err error) {
	_ = godotenv.Load()

	cfg, err := config.LoadWeb()
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	flush, err := app.InitSentry(cfg, "mockup-studio-web")
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	defer flush()
	defer sentry.Recover()
	defer func() {
		if err != nil {
			sentry.CaptureException(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4:        cfg.PreferIPv4,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.GeminiRPS,
	})

	gen, err := app.NewGenerator(ctx, cfg, httpClient, logger)
	if err != nil {
		return fmt.Errorf("gemini init: %w", err)
	}

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}

	api := web.New(web.Options{
		Sessions:       app.NewSessionStore(cfg, gen, logger),
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxUploadDim:   cfg.MaxUploadDim,
		BaseContext:    ctx,
		RunTimeout:     cfg.RequestTimeout,
		Static:         staticSub,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("web started", "addr", cfg.WebAddr, "transport", cfg.GeminiTransport)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("shutting down")
	return nil
}
