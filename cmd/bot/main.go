package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"mockup-studio/internal/app"
	"mockup-studio/internal/config"
	"mockup-studio/internal/handlers"
	"mockup-studio/internal/httpclient"
	"mockup-studio/internal/mediagroup"
	"mockup-studio/internal/mockup"
	"mockup-studio/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so the deferred Sentry flush always runs.
func run() (err error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	flush, err := app.InitSentry(cfg, "mockup-studio-bot")
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

	tgHTTP := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})
	geminiHTTP := httpclient.New(httpclient.Options{
		PreferIPv4:        cfg.PreferIPv4,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.GeminiRPS,
	})

	tg, err := telegram.New(telegram.Options{
		Token:       cfg.TelegramToken,
		HTTPClient:  tgHTTP,
		Logger:      logger,
		Debug:       cfg.Debug,
		MaxImageDim: cfg.MaxUploadDim,
	})
	if err != nil {
		return fmt.Errorf("telegram init: %w", err)
	}

	gen, err := app.NewGenerator(ctx, cfg, geminiHTTP, logger)
	if err != nil {
		return fmt.Errorf("gemini init: %w", err)
	}

	handler := handlers.New(handlers.Options{
		Telegram:    tg,
		Sessions:    app.NewSessionStore(cfg, gen, logger),
		Logger:      logger,
		BaseContext: ctx,
		RunTimeout:  cfg.RequestTimeout,
	})

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onAlbum := func(album mediagroup.Album) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleAlbum(reqCtx, album)
		}()
	}

	handler.SetMediaGroupAggregator(mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		Limit:    mockup.MaxSlots,
		OnFlush:  onAlbum,
	}))

	logger.Info("bot started", "username", tg.Username(), "transport", cfg.GeminiTransport)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return nil
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
					sentry.CaptureException(err)
				}
			}(update)
		}
	}
}
